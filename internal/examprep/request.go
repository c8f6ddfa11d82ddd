package examprep

import (
	"fmt"
	"strings"

	"github.com/p-n-ai/rapidrevise/internal/studyplan"
	"github.com/p-n-ai/rapidrevise/internal/videoselect"
)

// ValidationError reports malformed caller input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// SortBy orders each topic's videos before scheduling.
type SortBy string

const (
	SortRelevance    SortBy = "relevance"
	SortDuration     SortBy = "duration"
	SortDurationDesc SortBy = "duration_desc"
	SortViews        SortBy = "views"
	SortTitle        SortBy = "title"
)

// ParseSortBy accepts the known orderings; empty means relevance.
func ParseSortBy(s string) (SortBy, error) {
	switch v := SortBy(strings.ToLower(strings.TrimSpace(s))); v {
	case "":
		return SortRelevance, nil
	case SortRelevance, SortDuration, SortDurationDesc, SortViews, SortTitle:
		return v, nil
	default:
		return "", &ValidationError{
			Field:   "sort_by",
			Message: fmt.Sprintf("invalid sort_by %q: want one of relevance, duration, duration_desc, views, title", s),
		}
	}
}

// Request is one workflow invocation.
type Request struct {
	Board      string
	ClassLevel string
	Department string
	Subject    string
	// MaxDurationMinutes rejects longer videos when positive.
	MaxDurationMinutes int
	SortBy             SortBy
	// StudyHours is the study window; zero takes the configured default.
	StudyHours float64
}

// Metadata returns the pass-through context of the request.
func (r Request) Metadata() studyplan.Metadata {
	return studyplan.Metadata{
		Board:      r.Board,
		ClassLevel: r.ClassLevel,
		Department: r.Department,
		Subject:    r.Subject,
	}
}

// Validate checks the required fields and option ranges.
func (r Request) Validate() error {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"board", r.Board},
		{"class_level", r.ClassLevel},
		{"subject", r.Subject},
		{"department", r.Department},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return &ValidationError{
			Field:   missing[0],
			Message: "Missing query parameters: " + strings.Join(missing, ", "),
		}
	}
	if r.MaxDurationMinutes < 0 {
		return &ValidationError{Field: "max_duration", Message: "max_duration must not be negative"}
	}
	if r.StudyHours < 0 {
		return &ValidationError{Field: "study_hours", Message: "study_hours must not be negative"}
	}
	if _, err := ParseSortBy(string(r.SortBy)); err != nil {
		return err
	}
	return nil
}

// RequestKind names a pipeline stage request.
type RequestKind int

const (
	KindFetchSource RequestKind = iota
	KindAnalyze
	KindGenerateQuery
	KindStructureResponse
)

func (k RequestKind) String() string {
	switch k {
	case KindFetchSource:
		return "fetch_source"
	case KindAnalyze:
		return "analyze"
	case KindGenerateQuery:
		return "generate_query"
	case KindStructureResponse:
		return "structure_response"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// StageRequest is implemented only by the request types in this package.
type StageRequest interface {
	Kind() RequestKind
	sealed()
}

// StageResponse is implemented only by the response types in this package.
type StageResponse interface {
	responseKind() RequestKind
}

// FetchSourceRequest asks for a description of the relevant question papers.
type FetchSourceRequest struct {
	Metadata studyplan.Metadata
}

// AnalyzeRequest extracts ranked topics from the source description.
type AnalyzeRequest struct {
	Metadata studyplan.Metadata
	Source   string
}

// GenerateQueryRequest finds videos for one topic.
type GenerateQueryRequest struct {
	Metadata           studyplan.Metadata
	Topic              string
	Seen               videoselect.Seen
	MaxDurationMinutes int
}

// StructureRequest turns the topics and their videos into question and
// recommendation pairs.
type StructureRequest struct {
	Metadata studyplan.Metadata
	Topics   []studyplan.Topic
}

func (FetchSourceRequest) Kind() RequestKind   { return KindFetchSource }
func (AnalyzeRequest) Kind() RequestKind       { return KindAnalyze }
func (GenerateQueryRequest) Kind() RequestKind { return KindGenerateQuery }
func (StructureRequest) Kind() RequestKind     { return KindStructureResponse }

func (FetchSourceRequest) sealed()   {}
func (AnalyzeRequest) sealed()       {}
func (GenerateQueryRequest) sealed() {}
func (StructureRequest) sealed()     {}

// FetchSourceResponse carries the generated source description.
type FetchSourceResponse struct {
	Source string
}

// AnalyzeResponse carries the raw analysis and the extracted topics.
type AnalyzeResponse struct {
	Analysis string
	Topics   []studyplan.Topic
}

// GenerateQueryResponse carries the queries used, the videos found and the
// seen set extended by them.
type GenerateQueryResponse struct {
	Queries []string
	Videos  []studyplan.Video
	Seen    videoselect.Seen
}

// StructureResponse carries the structured question and recommendation
// pairs.
type StructureResponse struct {
	QA []studyplan.QA
}

func (FetchSourceResponse) responseKind() RequestKind   { return KindFetchSource }
func (AnalyzeResponse) responseKind() RequestKind       { return KindAnalyze }
func (GenerateQueryResponse) responseKind() RequestKind { return KindGenerateQuery }
func (StructureResponse) responseKind() RequestKind     { return KindStructureResponse }
