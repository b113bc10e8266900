package safety

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeRepo struct {
	Repository

	labeled       map[string]HumanLabel
	inserted      []CorpusItem
	updated       []CorpusItem
	deleted       []string
	insertErr     error
	nextID        string
	queueItems    []QueueItem
	queueTotal    int
	queueFilters  QueueFilters
	assessment    *Assessment
	assessmentErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{labeled: map[string]HumanLabel{}, nextID: "item-1"}
}

func (f *fakeRepo) LabelAssessment(_ context.Context, id string, label HumanLabel, _ string) error {
	f.labeled[id] = label
	return nil
}

func (f *fakeRepo) GetAssessment(_ context.Context, _ string) (*Assessment, error) {
	return f.assessment, f.assessmentErr
}

func (f *fakeRepo) QueueItems(_ context.Context, filters QueueFilters) ([]QueueItem, int, error) {
	f.queueFilters = filters
	return f.queueItems, f.queueTotal, nil
}

func (f *fakeRepo) InsertCorpusItem(_ context.Context, item CorpusItem) (string, error) {
	if f.insertErr != nil {
		return "", f.insertErr
	}
	f.inserted = append(f.inserted, item)
	return f.nextID, nil
}

func (f *fakeRepo) UpdateCorpusItem(_ context.Context, item CorpusItem) error {
	f.updated = append(f.updated, item)
	return nil
}

func (f *fakeRepo) DeleteCorpusItem(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeModerator struct {
	approved map[string]bool
	deleted  []string
	err      error
}

func newFakeModerator() *fakeModerator {
	return &fakeModerator{approved: map[string]bool{}}
}

func (f *fakeModerator) SetApproved(_ context.Context, id string, approved bool) error {
	if f.err != nil {
		return f.err
	}
	f.approved[id] = approved
	return nil
}

func (f *fakeModerator) Delete(_ context.Context, id string) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeIndexer struct {
	indexed map[string]string
	removed []string
	err     error
}

func newFakeIndexer() *fakeIndexer {
	return &fakeIndexer{indexed: map[string]string{}}
}

func (f *fakeIndexer) Index(_ context.Context, targetType, targetID, content string) error {
	if f.err != nil {
		return f.err
	}
	f.indexed[targetType+"/"+targetID] = content
	return nil
}

func (f *fakeIndexer) Remove(_ context.Context, targetType, targetID string) error {
	f.removed = append(f.removed, targetType+"/"+targetID)
	return f.err
}

func newTestAdmin(t *testing.T, repo *fakeRepo, mod *fakeModerator, idx *fakeIndexer) *AdminService {
	t.Helper()
	return NewAdminService(repo, mod, idx, zaptest.NewLogger(t))
}

func TestLabelAssessment(t *testing.T) {
	repo := newFakeRepo()
	s := newTestAdmin(t, repo, newFakeModerator(), newFakeIndexer())

	err := s.LabelAssessment(context.Background(), "as-1", LabelFalsePositive, "admin@site")
	require.NoError(t, err)
	assert.Equal(t, LabelFalsePositive, repo.labeled["as-1"])
}

func TestLabelAssessmentInvalidLabel(t *testing.T) {
	repo := newFakeRepo()
	s := newTestAdmin(t, repo, newFakeModerator(), newFakeIndexer())

	err := s.LabelAssessment(context.Background(), "as-1", HumanLabel("Maybe"), "admin@site")
	require.Error(t, err)
	assert.Empty(t, repo.labeled)
}

func TestApproveComment(t *testing.T) {
	mod := newFakeModerator()
	s := newTestAdmin(t, newFakeRepo(), mod, newFakeIndexer())

	require.NoError(t, s.ApproveComment(context.Background(), "c-1"))
	assert.True(t, mod.approved["c-1"])

	require.Error(t, s.ApproveComment(context.Background(), ""))
}

func TestRejectComment(t *testing.T) {
	mod := newFakeModerator()
	s := newTestAdmin(t, newFakeRepo(), mod, newFakeIndexer())

	require.NoError(t, s.RejectComment(context.Background(), "c-1"))
	assert.Equal(t, []string{"c-1"}, mod.deleted)
}

func TestFetchQueuePassesFilters(t *testing.T) {
	repo := newFakeRepo()
	repo.queueItems = []QueueItem{{CommentID: "c-1"}}
	repo.queueTotal = 1
	s := newTestAdmin(t, repo, newFakeModerator(), newFakeIndexer())

	items, total, err := s.FetchQueue(context.Background(), QueueFilters{RiskLevel: RiskHigh, Unlabeled: true, Limit: 20})
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, RiskHigh, repo.queueFilters.RiskLevel)
	assert.True(t, repo.queueFilters.Unlabeled)
}

func TestPromoteToCorpus(t *testing.T) {
	repo := newFakeRepo()
	idx := newFakeIndexer()
	s := newTestAdmin(t, repo, newFakeModerator(), idx)

	id, err := s.PromoteToCorpus(context.Background(), PromoteInput{
		Text:     "想賺錢加我line或寄到 a@b.com",
		Label:    "contact_solicitation",
		Kind:     CorpusKindSlang,
		Activate: true,
	}, "admin@site")
	require.NoError(t, err)
	assert.Equal(t, "item-1", id)

	require.Len(t, repo.inserted, 1)
	item := repo.inserted[0]
	assert.Equal(t, CorpusStatusActive, item.Status)
	// PII is stripped before the text reaches storage or the index.
	assert.NotContains(t, item.Content, "a@b.com")
	assert.Contains(t, item.Content, "[EMAIL]")
	assert.Equal(t, item.Content, idx.indexed[TargetTypeSlang+"/item-1"])
}

func TestPromoteToCorpusDraftNotIndexed(t *testing.T) {
	repo := newFakeRepo()
	idx := newFakeIndexer()
	s := newTestAdmin(t, repo, newFakeModerator(), idx)

	_, err := s.PromoteToCorpus(context.Background(), PromoteInput{
		Text:  "some risky text",
		Label: "gambling",
		Kind:  CorpusKindCase,
	}, "admin@site")
	require.NoError(t, err)
	assert.Equal(t, CorpusStatusDraft, repo.inserted[0].Status)
	assert.Empty(t, idx.indexed)
}

func TestPromoteToCorpusValidation(t *testing.T) {
	s := newTestAdmin(t, newFakeRepo(), newFakeModerator(), newFakeIndexer())

	_, err := s.PromoteToCorpus(context.Background(), PromoteInput{Text: "  ", Label: "x", Kind: CorpusKindSlang}, "a")
	require.Error(t, err)

	_, err = s.PromoteToCorpus(context.Background(), PromoteInput{Text: "x", Label: "l", Kind: CorpusKind("bogus")}, "a")
	require.Error(t, err)
}

func TestPromoteToCorpusIndexFailureNotFatal(t *testing.T) {
	repo := newFakeRepo()
	idx := newFakeIndexer()
	idx.err = errors.New("embedding provider down")
	s := newTestAdmin(t, repo, newFakeModerator(), idx)

	id, err := s.PromoteToCorpus(context.Background(), PromoteInput{
		Text:     "risky",
		Label:    "gambling",
		Kind:     CorpusKindSlang,
		Activate: true,
	}, "admin@site")
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}

func TestUpdateCorpusItem(t *testing.T) {
	repo := newFakeRepo()
	idx := newFakeIndexer()
	s := newTestAdmin(t, repo, newFakeModerator(), idx)

	err := s.UpdateCorpusItem(context.Background(), CorpusItem{
		ID:      "item-9",
		Kind:    CorpusKindCase,
		Label:   "gambling",
		Content: "updated text",
		Status:  CorpusStatusActive,
	})
	require.NoError(t, err)
	require.Len(t, repo.updated, 1)
	assert.Equal(t, "updated text", idx.indexed[TargetTypeCase+"/item-9"])
}

func TestUpdateCorpusItemArchivedRemovedFromIndex(t *testing.T) {
	repo := newFakeRepo()
	idx := newFakeIndexer()
	s := newTestAdmin(t, repo, newFakeModerator(), idx)

	err := s.UpdateCorpusItem(context.Background(), CorpusItem{
		ID:     "item-9",
		Kind:   CorpusKindSlang,
		Status: CorpusStatusArchived,
	})
	require.NoError(t, err)
	assert.Contains(t, idx.removed, TargetTypeSlang+"/item-9")
	assert.Empty(t, idx.indexed)
}

func TestDeleteCorpusItem(t *testing.T) {
	repo := newFakeRepo()
	idx := newFakeIndexer()
	s := newTestAdmin(t, repo, newFakeModerator(), idx)

	require.NoError(t, s.DeleteCorpusItem(context.Background(), "item-3", CorpusKindCase))
	assert.Equal(t, []string{"item-3"}, repo.deleted)
	assert.Contains(t, idx.removed, TargetTypeCase+"/item-3")
}
