// Fairplay - Puzzle Platform Trust & Safety
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairplay

package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/goccy/go-json"

	"github.com/tomtom215/fairplay/internal/analytics"
	"github.com/tomtom215/fairplay/internal/appeal"
	"github.com/tomtom215/fairplay/internal/audit"
	"github.com/tomtom215/fairplay/internal/auth"
	"github.com/tomtom215/fairplay/internal/authz"
	"github.com/tomtom215/fairplay/internal/community"
	"github.com/tomtom215/fairplay/internal/config"
	"github.com/tomtom215/fairplay/internal/detection"
	"github.com/tomtom215/fairplay/internal/models"
	"github.com/tomtom215/fairplay/internal/pipeline"
)

// fakeBackend implements every service interface the Handler uses. err,
// when set, is returned from every call. The last arguments are recorded.
type fakeBackend struct {
	mu  sync.Mutex
	err error

	submission   *detection.Submission
	caseFilter   models.CaseFilter
	appealFilter models.AppealFilter
	reportFilter models.ReportFilter
	calls        []string
	actor        string
	target       string

	appeal  *models.Appeal
	report  *models.CommunityReport
	pingErr error

	auditFilter  audit.QueryFilter
	staffChanges []string
}

func (f *fakeBackend) record(call, actor, target string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	f.actor = actor
	f.target = target
}

func (f *fakeBackend) lastCall() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return ""
	}
	return f.calls[len(f.calls)-1]
}

func (f *fakeBackend) ValidateSolution(_ context.Context, sub *detection.Submission) (*pipeline.Outcome, error) {
	f.record("ValidateSolution", sub.UserID, sub.PuzzleID)
	f.submission = sub
	if f.err != nil {
		return nil, f.err
	}
	return &pipeline.Outcome{Detection: &models.DetectionResult{ID: "d1", UserID: sub.UserID}}, nil
}

func (f *fakeBackend) GetDetection(_ context.Context, id string) (*models.DetectionResult, error) {
	f.record("GetDetection", "", id)
	if f.err != nil {
		return nil, f.err
	}
	return &models.DetectionResult{ID: id}, nil
}

func (f *fakeBackend) ListDetections(_ context.Context, _ models.DetectionFilter) ([]*models.DetectionResult, error) {
	f.record("ListDetections", "", "")
	return []*models.DetectionResult{{ID: "d1"}, {ID: "d2"}}, f.err
}

func (f *fakeBackend) GetCase(_ context.Context, id string) (*models.ReviewCase, error) {
	f.record("GetCase", "", id)
	if f.err != nil {
		return nil, f.err
	}
	return &models.ReviewCase{ID: id}, nil
}

func (f *fakeBackend) ListCases(_ context.Context, filter models.CaseFilter) ([]*models.ReviewCase, error) {
	f.record("ListCases", "", "")
	f.caseFilter = filter
	return nil, f.err
}

func (f *fakeBackend) AssignReviewer(_ context.Context, caseID, reviewerID, assignedBy string) (*models.ReviewCase, error) {
	f.record("AssignReviewer", assignedBy, reviewerID)
	return &models.ReviewCase{ID: caseID, AssignedReviewer: &reviewerID}, f.err
}

func (f *fakeBackend) AutoAssign(_ context.Context, caseID string) (*models.ReviewCase, error) {
	f.record("AutoAssign", "", caseID)
	return &models.ReviewCase{ID: caseID}, f.err
}

func (f *fakeBackend) StartReview(_ context.Context, caseID, reviewerID string) (*models.CaseAnalysis, error) {
	f.record("StartReview", reviewerID, caseID)
	return &models.CaseAnalysis{CaseID: caseID}, f.err
}

func (f *fakeBackend) SubmitReview(_ context.Context, caseID, reviewerID string, _ models.ReviewDecision) (*models.ReviewCase, error) {
	f.record("SubmitReview", reviewerID, caseID)
	return &models.ReviewCase{ID: caseID}, f.err
}

func (f *fakeBackend) EscalateCase(_ context.Context, caseID, escalatedBy, _ string, _ models.ReviewTier) (*models.ReviewCase, error) {
	f.record("EscalateCase", escalatedBy, caseID)
	return &models.ReviewCase{ID: caseID}, f.err
}

func (f *fakeBackend) SubmitAppeal(_ context.Context, req appeal.SubmitRequest) (*models.Appeal, error) {
	f.record("SubmitAppeal", req.UserID, req.CaseID)
	return &models.Appeal{ID: "a1", UserID: req.UserID}, f.err
}

func (f *fakeBackend) AssignAppeal(_ context.Context, appealID, reviewerID string) (*models.Appeal, error) {
	f.record("AssignAppeal", reviewerID, appealID)
	return &models.Appeal{ID: appealID}, f.err
}

func (f *fakeBackend) ReviewAppeal(_ context.Context, appealID, reviewerID string, _ appeal.ReviewInput) (*models.Appeal, error) {
	f.record("ReviewAppeal", reviewerID, appealID)
	return &models.Appeal{ID: appealID}, f.err
}

func (f *fakeBackend) WithdrawAppeal(_ context.Context, appealID, userID string) (*models.Appeal, error) {
	f.record("WithdrawAppeal", userID, appealID)
	return &models.Appeal{ID: appealID}, f.err
}

func (f *fakeBackend) GetAppeal(_ context.Context, appealID string) (*models.Appeal, error) {
	f.record("GetAppeal", "", appealID)
	if f.err != nil {
		return nil, f.err
	}
	return f.appeal, nil
}

func (f *fakeBackend) ListAppeals(_ context.Context, filter models.AppealFilter) ([]*models.Appeal, error) {
	f.record("ListAppeals", "", "")
	f.appealFilter = filter
	return nil, f.err
}

func (f *fakeBackend) SubmitReport(_ context.Context, req community.SubmitRequest) (*models.CommunityReport, error) {
	f.record("SubmitReport", req.ReporterID, req.ReportedUserID)
	return &models.CommunityReport{ID: "rep1"}, f.err
}

func (f *fakeBackend) VoteOnReport(_ context.Context, reportID, voterID string, _ models.VoteOption) (*models.CommunityReport, error) {
	f.record("VoteOnReport", voterID, reportID)
	return &models.CommunityReport{ID: reportID}, f.err
}

func (f *fakeBackend) AssignModerator(_ context.Context, reportID, moderatorID, assignedBy string) (*models.CommunityReport, error) {
	f.record("AssignModerator", assignedBy, moderatorID)
	return &models.CommunityReport{ID: reportID}, f.err
}

func (f *fakeBackend) ModerateReport(_ context.Context, reportID, moderatorID string, _ models.ModerationDecision) (*models.CommunityReport, error) {
	f.record("ModerateReport", moderatorID, reportID)
	return &models.CommunityReport{ID: reportID}, f.err
}

func (f *fakeBackend) EscalateReport(_ context.Context, reportID, escalatedBy, _ string, _ models.ReviewTier) (*models.CommunityReport, error) {
	f.record("EscalateReport", escalatedBy, reportID)
	return &models.CommunityReport{ID: reportID}, f.err
}

func (f *fakeBackend) GetReport(_ context.Context, reportID string) (*models.CommunityReport, error) {
	f.record("GetReport", "", reportID)
	if f.err != nil {
		return nil, f.err
	}
	return f.report, nil
}

func (f *fakeBackend) ListReports(_ context.Context, filter models.ReportFilter) ([]*models.CommunityReport, error) {
	f.record("ListReports", "", "")
	f.reportFilter = filter
	return nil, f.err
}

func (f *fakeBackend) Snapshot() analytics.Snapshot {
	return analytics.Snapshot{FalsePositiveRate: 0.25}
}

func (f *fakeBackend) SaveReviewer(_ context.Context, r *models.Reviewer) error {
	f.record("SaveReviewer", "", r.ID)
	return f.err
}

func (f *fakeBackend) GetReviewer(_ context.Context, id string) (*models.Reviewer, error) {
	f.record("GetReviewer", "", id)
	if f.err != nil {
		return nil, f.err
	}
	return &models.Reviewer{ID: id}, nil
}

func (f *fakeBackend) ListReviewers(_ context.Context, _ models.StaffRole) ([]*models.Reviewer, error) {
	f.record("ListReviewers", "", "")
	return nil, f.err
}

func (f *fakeBackend) RecordStaffChange(_ *http.Request, actorID string, _ []string, staff *models.Reviewer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.staffChanges = append(f.staffChanges, actorID+">"+staff.ID)
}

func (f *fakeBackend) Query(_ context.Context, filter audit.QueryFilter) ([]audit.Event, error) {
	f.record("QueryAudit", filter.ActorID, filter.TargetID)
	f.auditFilter = filter
	if f.err != nil {
		return nil, f.err
	}
	return []audit.Event{{ID: "ev1", Type: audit.EventTypeAuthzDenied}}, nil
}

func (f *fakeBackend) Ping(context.Context) error {
	return f.pingErr
}

var errBoom = errors.New("connection reset by peer")

type testServer struct {
	backend *fakeBackend
	handler http.Handler
}

// newTestServer wires the real router, header-mode authentication and the
// embedded authorization policy around a fakeBackend.
func newTestServer(t *testing.T, serverCfg *config.ServerConfig) *testServer {
	t.Helper()

	authn, err := auth.NewMiddleware(config.SecurityConfig{AuthMode: "none"})
	if err != nil {
		t.Fatal(err)
	}
	enforcer, err := authz.NewEnforcer("")
	if err != nil {
		t.Fatal(err)
	}

	cfg := config.Default().Server
	cfg.RateLimitRequests = 0
	if serverCfg != nil {
		cfg = *serverCfg
	}

	b := &fakeBackend{}
	h := NewHandler(Deps{
		Pipeline:    b,
		Detections:  b,
		Cases:       b,
		Appeals:     b,
		Reports:     b,
		Analytics:   b,
		Staff:       b,
		Health:      b,
		Permissions: enforcer,
		Audit:       b,
	})
	router := NewRouter(h, authn, authz.NewMiddleware(enforcer), NewChiMiddleware(MiddlewareConfigFromServer(cfg)))
	return &testServer{backend: b, handler: router.Setup()}
}

// do sends a request as userID with roles. An empty userID sends no
// identity headers.
func (s *testServer) do(t *testing.T, method, path, userID, roles, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
		req.Header.Set("X-User-Roles", roles)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) models.APIResponse {
	t.Helper()
	var resp models.APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid envelope %q: %v", rec.Body.String(), err)
	}
	return resp
}

func expectError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) models.APIResponse {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, status, rec.Body.String())
	}
	resp := decodeEnvelope(t, rec)
	if resp.Status != "error" || resp.Error == nil || resp.Error.Code != code {
		t.Fatalf("envelope = %+v, want error code %s", resp, code)
	}
	return resp
}
