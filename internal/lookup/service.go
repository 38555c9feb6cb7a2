// Package lookup assembles the staff-facing search and detail responses. It
// is the only layer that talks to the result cache, the name filter and the
// photo resolver; handlers stay thin.
package lookup

import (
	"context"
	"net/http"
	"strings"

	"github.com/escolaware/portaria-bridge/internal/cache"
	"github.com/escolaware/portaria-bridge/internal/match"
	"github.com/escolaware/portaria-bridge/internal/photo"
	"github.com/escolaware/portaria-bridge/internal/relation"
	"github.com/escolaware/portaria-bridge/internal/sophia"
	"github.com/rs/zerolog/log"
)

// Upstream is the slice of the Sophia client the service depends on.
type Upstream interface {
	SearchStudents(ctx context.Context, firstName string) ([]sophia.Student, error)
	Student(ctx context.Context, code int) (sophia.Student, error)
	Guardians(ctx context.Context, code int) ([]sophia.Guardian, error)
	PickupAuthorization(ctx context.Context, code int) (sophia.PickupAuthorization, error)
	StudentPhoto(ctx context.Context, code int) (string, error)
	GuardianPhoto(ctx context.Context, code int) (string, error)
}

// StudentSummary is one search hit. Photo is empty when the student has no
// photo on record or its lookup failed.
type StudentSummary struct {
	Code  int    `json:"code"`
	Name  string `json:"name"`
	Photo string `json:"photo,omitempty"`
}

// SearchResult is the fully assembled response for one search query. It is
// immutable once inserted into the result cache.
type SearchResult struct {
	Query     string           `json:"query"`
	Students  []StudentSummary `json:"students"`
	FromCache bool             `json:"fromCache"`
}

// AuthorizedPerson is a person cleared to pick the student up.
type AuthorizedPerson struct {
	Code         int    `json:"code"`
	Name         string `json:"name"`
	Relationship string `json:"relationship"`
	Photo        string `json:"photo,omitempty"`
}

// ExitRules are the six authorization flags recorded for a student.
type ExitRules struct {
	LeaveAccompanied          bool `json:"leaveAccompanied"`
	LeaveAlone                bool `json:"leaveAlone"`
	LeaveBySchoolTransport    bool `json:"leaveBySchoolTransport"`
	WaitOutsideSchool         bool `json:"waitOutsideSchool"`
	LeaveAtRegularTime        bool `json:"leaveAtRegularTime"`
	LeaveAfterExtracurricular bool `json:"leaveAfterExtracurricular"`
}

// StudentDetail is the response for the detail view.
type StudentDetail struct {
	StudentCode  int                `json:"studentCode"`
	StudentName  string             `json:"studentName"`
	StudentPhoto string             `json:"studentPhoto,omitempty"`
	Guardians    []AuthorizedPerson `json:"guardians"`
	Others       []AuthorizedPerson `json:"others"`
	ExitRules    ExitRules          `json:"exitRules"`
}

// ValidationError rejects a request before any upstream call.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Status implements the HTTPStatuser convention used by the HTTP handlers.
func (e *ValidationError) Status() (int, string) {
	return http.StatusBadRequest, e.Message
}

// Service implements the staff-facing search and detail operations.
type Service struct {
	upstream  Upstream
	results   cache.ResultCache[SearchResult]
	resolver  *photo.Resolver
	relations *relation.Store
}

func NewService(upstream Upstream, results cache.ResultCache[SearchResult], resolver *photo.Resolver, relations *relation.Store) *Service {
	return &Service{
		upstream:  upstream,
		results:   results,
		resolver:  resolver,
		relations: relations,
	}
}

// Search returns the students matching the query, with photos resolved. The
// result cache is consulted before anything else: a hit short-circuits
// token acquisition, the upstream search and photo resolution. Only fully
// assembled results are cached; a failed population writes nothing.
func (s *Service) Search(ctx context.Context, query string) (SearchResult, error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return SearchResult{}, &ValidationError{Message: "a search term is required"}
	}

	// cache keys are case-folded but keep their diacritics: "Ana" and "ana"
	// share an entry, "José" and "Jose" do not
	key := strings.ToLower(trimmed)

	cached, found, err := s.results.Get(ctx, key)
	if err != nil {
		// a broken cache backend degrades to a miss
		log.Warn().Err(err).Msg("result cache read failed")
	}
	if found {
		log.Info().Str("key", key).Msg("hit: cached result for query")
		cached.FromCache = true
		return cached, nil
	}

	// the upstream search only narrows by the first token; the remaining
	// tokens are applied locally
	tokens := match.Tokens(trimmed)
	firstToken := strings.Fields(trimmed)[0]

	candidates, err := s.upstream.SearchStudents(ctx, firstToken)
	if err != nil {
		return SearchResult{}, err
	}

	var matched []sophia.Student
	for _, candidate := range candidates {
		if match.Matches(candidate.Name, tokens) {
			matched = append(matched, candidate)
		}
	}

	codes := make([]int, 0, len(matched))
	for _, student := range matched {
		codes = append(codes, student.Code)
	}
	photos := s.resolver.ResolveMany(ctx, s.upstream.StudentPhoto, codes)

	result := SearchResult{
		Query:    trimmed,
		Students: make([]StudentSummary, 0, len(matched)),
	}
	for _, student := range matched {
		result.Students = append(result.Students, StudentSummary{
			Code:  student.Code,
			Name:  student.Name,
			Photo: photos[student.Code],
		})
	}

	if err := s.results.Set(ctx, key, result); err != nil {
		log.Warn().Err(err).Msg("result cache write failed")
	}

	return result, nil
}

// Detail returns the authorized pickup people and exit rules for a student.
// The result cache is bypassed: authorization data must always be current.
func (s *Service) Detail(ctx context.Context, studentCode int) (StudentDetail, error) {
	guardians, err := s.upstream.Guardians(ctx, studentCode)
	if err != nil {
		return StudentDetail{}, err
	}

	auth, err := s.upstream.PickupAuthorization(ctx, studentCode)
	if err != nil {
		return StudentDetail{}, err
	}

	student, err := s.upstream.Student(ctx, studentCode)
	if err != nil {
		return StudentDetail{}, err
	}

	studentPhoto, err := s.upstream.StudentPhoto(ctx, studentCode)
	if err != nil {
		log.Debug().Int("code", studentCode).Err(err).Msg("student photo lookup failed")
		studentPhoto = ""
	}

	var authorized []sophia.Guardian
	codes := make([]int, 0, len(guardians))
	for _, guardian := range guardians {
		if guardian.PickupAuthorized {
			authorized = append(authorized, guardian)
			codes = append(codes, guardian.Code)
		}
	}

	photos := s.resolver.ResolveMany(ctx, s.upstream.GuardianPhoto, codes)

	detail := StudentDetail{
		StudentCode:  studentCode,
		StudentName:  student.Name,
		StudentPhoto: studentPhoto,
		Guardians:    []AuthorizedPerson{},
		Others:       []AuthorizedPerson{},
		ExitRules: ExitRules{
			LeaveAccompanied:          auth.LeaveAccompanied,
			LeaveAlone:                auth.LeaveAlone,
			LeaveBySchoolTransport:    auth.LeaveBySchoolTransport,
			WaitOutsideSchool:         auth.WaitOutsideSchool,
			LeaveAtRegularTime:        auth.LeaveAtRegularTime,
			LeaveAfterExtracurricular: auth.LeaveAfterExtracurricular,
		},
	}

	for _, guardian := range authorized {
		// upstream data sometimes registers the student against themselves;
		// filtered by exact case-insensitive name equality as recorded
		if strings.EqualFold(guardian.Name, student.Name) {
			continue
		}

		person := AuthorizedPerson{
			Code:         guardian.Code,
			Name:         guardian.Name,
			Relationship: guardian.Relationship.Description,
			Photo:        photos[guardian.Code],
		}

		if s.relations.IsParent(guardian.Relationship.Description) {
			detail.Guardians = append(detail.Guardians, person)
		} else {
			detail.Others = append(detail.Others, person)
		}
	}

	return detail, nil
}
