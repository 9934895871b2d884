package services

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pagopa/payment-notice-generator/internal/clients/pdfengine"
	"github.com/pagopa/payment-notice-generator/internal/domain"
	"github.com/pagopa/payment-notice-generator/internal/platform/apperr"
	"github.com/pagopa/payment-notice-generator/internal/platform/cipher"
	"github.com/pagopa/payment-notice-generator/internal/platform/dbctx"
	"github.com/pagopa/payment-notice-generator/internal/platform/logger"
)

// ---- in-memory fakes ----

type fakeFolderRepo struct {
	mu      sync.Mutex
	folders map[string]*domain.Folder
	items   map[string]map[string]bool
}

func newFakeFolderRepo() *fakeFolderRepo {
	return &fakeFolderRepo{
		folders: map[string]*domain.Folder{},
		items:   map[string]map[string]bool{},
	}
}

func (f *fakeFolderRepo) GetByID(dbc dbctx.Context, folderID string) (*domain.Folder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	folder, ok := f.folders[folderID]
	if !ok {
		return nil, nil
	}
	out := *folder
	out.Items = nil
	for itemID := range f.items[folderID] {
		out.Items = append(out.Items, domain.FolderItem{FolderID: folderID, ItemID: itemID})
	}
	return &out, nil
}

func (f *fakeFolderRepo) Create(dbc dbctx.Context, folder *domain.Folder) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.folders[folder.ID] = folder
	f.items[folder.ID] = map[string]bool{}
	return nil
}

func (f *fakeFolderRepo) CountItems(dbc dbctx.Context, folderID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.items[folderID])), nil
}

func (f *fakeFolderRepo) RegisterItem(dbc dbctx.Context, folderID string, itemID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	folder, ok := f.folders[folderID]
	if !ok {
		return 0, nil
	}
	if folder.Status != domain.FolderStatusInserted && folder.Status != domain.FolderStatusProcessing {
		return 0, nil
	}
	f.items[folderID][itemID] = true
	folder.Status = domain.FolderStatusProcessing
	return 1, nil
}

func (f *fakeFolderRepo) IncrementFailed(dbc dbctx.Context, folderID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	folder, ok := f.folders[folderID]
	if !ok {
		return 0, nil
	}
	folder.NumberOfElementsFailed++
	return 1, nil
}

func (f *fakeFolderRepo) DecrementFailed(dbc dbctx.Context, folderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	folder, ok := f.folders[folderID]
	if ok && folder.NumberOfElementsFailed >= 1 {
		folder.NumberOfElementsFailed--
	}
	return nil
}

func (f *fakeFolderRepo) TryComplete(dbc dbctx.Context, folderID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	folder, ok := f.folders[folderID]
	if !ok || folder.Status != domain.FolderStatusProcessing {
		return false, nil
	}
	if folder.NumberOfElementsTotal > len(f.items[folderID])+folder.NumberOfElementsFailed {
		return false, nil
	}
	folder.Status = domain.FolderStatusCompleting
	return true, nil
}

type fakeErrorRepo struct {
	mu      sync.Mutex
	records map[string]*domain.ErrorRecord
}

func newFakeErrorRepo() *fakeErrorRepo {
	return &fakeErrorRepo{records: map[string]*domain.ErrorRecord{}}
}

func errorKey(errorID, folderID string) string { return errorID + "|" + folderID }

func (f *fakeErrorRepo) GetByKey(dbc dbctx.Context, errorID string, folderID string) (*domain.ErrorRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.records[errorKey(errorID, folderID)]
	if !ok {
		return nil, nil
	}
	out := *record
	return &out, nil
}

func (f *fakeErrorRepo) Create(dbc dbctx.Context, record *domain.ErrorRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := errorKey(record.ErrorID, record.FolderID)
	if _, ok := f.records[key]; ok {
		return fmt.Errorf("duplicate key")
	}
	stored := *record
	f.records[key] = &stored
	return nil
}

func (f *fakeErrorRepo) RefreshDescription(dbc dbctx.Context, errorID string, folderID string, description string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if record, ok := f.records[errorKey(errorID, folderID)]; ok {
		record.ErrorDescription = description
		record.NumberOfAttempts++
	}
	return nil
}

func (f *fakeErrorRepo) DeleteByKey(dbc dbctx.Context, errorID string, folderID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := errorKey(errorID, folderID)
	if _, ok := f.records[key]; !ok {
		return 0, nil
	}
	delete(f.records, key)
	return 1, nil
}

type fakeTemplates struct {
	rules    string
	zip      []byte
	missing  bool
	downErr  bool
	requests int
}

func (f *fakeTemplates) GetTemplate(ctx context.Context, templateID string) ([]byte, error) {
	if f.missing {
		return nil, apperr.Newf(apperr.TemplateNotFound, "template %q not found", templateID)
	}
	if f.downErr {
		return nil, apperr.New(apperr.TemplateClientUnavailable, "storage unreachable")
	}
	return f.zip, nil
}

func (f *fakeTemplates) GetTemplates(ctx context.Context) ([]domain.TemplateResource, error) {
	return []domain.TemplateResource{{TemplateID: "template", TemplateValidationRules: f.rules}}, nil
}

func (f *fakeTemplates) GetTemplateResource(ctx context.Context, templateID string) (*domain.TemplateResource, error) {
	if f.missing {
		return nil, apperr.Newf(apperr.TemplateNotFound, "template %q not found", templateID)
	}
	f.requests++
	return &domain.TemplateResource{TemplateID: templateID, TemplateValidationRules: f.rules}, nil
}

type fakeInstitutions struct {
	institution *domain.CreditorInstitution
	missing     bool
}

func (f *fakeInstitutions) GetInstitution(ctx context.Context, taxCode string) (*domain.CreditorInstitution, error) {
	if f.missing || f.institution == nil {
		return nil, apperr.Newf(apperr.InstitutionNotFound, "institution %q not found", taxCode)
	}
	out := *f.institution
	return &out, nil
}

type fakeNoticeStore struct {
	mu    sync.Mutex
	saved map[string][]byte
	fail  bool
}

func newFakeNoticeStore() *fakeNoticeStore {
	return &fakeNoticeStore{saved: map[string][]byte{}}
}

func (f *fakeNoticeStore) SaveNotice(ctx context.Context, pdf []byte, folderID string, itemID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return apperr.New(apperr.NoticeSaveError, "bucket write failed")
	}
	f.saved[folderID+"/"+itemID] = pdf
	return nil
}

type fakeEngine struct {
	mu       sync.Mutex
	calls    int
	response pdfengine.Response
}

func (f *fakeEngine) GeneratePDF(ctx context.Context, template []byte, data []byte) pdfengine.Response {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.response
}

type fakePublisher struct {
	mu       sync.Mutex
	complete []*domain.Folder
	errors   []*domain.ErrorRecord
}

func (f *fakePublisher) NoticeComplete(ctx context.Context, folder *domain.Folder) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.complete = append(f.complete, folder)
	return nil
}

func (f *fakePublisher) NoticeError(ctx context.Context, record *domain.ErrorRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, record)
	return nil
}

func (f *fakePublisher) Close() {}

// ---- harness ----

type harness struct {
	svc          GenerationService
	folders      *fakeFolderRepo
	records      *fakeErrorRepo
	templates    *fakeTemplates
	institutions *fakeInstitutions
	noticeStore  *fakeNoticeStore
	engine       *fakeEngine
	publisher    *fakePublisher
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log, err := logger.New("test")
	require.NoError(t, err)

	dataCipher, err := cipher.New(bytes.Repeat([]byte{0x42}, 32))
	require.NoError(t, err)

	h := &harness{
		folders: newFakeFolderRepo(),
		records: newFakeErrorRepo(),
		templates: &fakeTemplates{
			zip: []byte("zip-bytes"),
		},
		institutions: &fakeInstitutions{
			institution: &domain.CreditorInstitution{
				TaxCode:   "12345678901",
				FullName:  "Comune di Roma",
				CBill:     "ABC12",
				PosteAuth: "AUTH123",
			},
		},
		noticeStore: newFakeNoticeStore(),
		engine: &fakeEngine{
			response: pdfengine.Response{StatusCode: http.StatusOK, Pdf: []byte("%PDF-1.7")},
		},
		publisher: &fakePublisher{},
	}

	ledger := NewErrorLedger(log, h.folders, h.records, h.publisher, dataCipher)
	h.svc = NewGenerationService(log, h.folders, h.templates, h.institutions, h.noticeStore, h.engine, ledger, h.publisher)
	return h
}

func (h *harness) addFolder(t *testing.T, id string, total int) {
	t.Helper()
	require.NoError(t, h.folders.Create(dbctx.Background(), &domain.Folder{
		ID:                    id,
		Status:                domain.FolderStatusInserted,
		NumberOfElementsTotal: total,
	}))
}

func sampleItem() domain.NoticeGenerationRequestItem {
	amount := int64(100)
	return domain.NoticeGenerationRequestItem{
		TemplateID: "template",
		Data: domain.NoticeRequestData{
			Notice: domain.Notice{
				Subject:       "TARI 2024",
				PaymentAmount: &amount,
				Code:          "123456789012345678",
				DueDate:       "2024-12-31",
			},
			CreditorInstitution: domain.CreditorInstitution{TaxCode: "12345678901"},
			Debtor:              domain.Debtor{TaxCode: "RSSMRA80A01H501U", FullName: "Mario Rossi"},
		},
	}
}

// ---- tests ----

func TestGenerateWithoutFolder(t *testing.T) {
	h := newHarness(t)

	pdf, err := h.svc.Generate(context.Background(), sampleItem(), "", "")
	require.NoError(t, err)
	require.Equal(t, []byte("%PDF-1.7"), pdf)
	require.Equal(t, 1, h.engine.calls)
	require.Empty(t, h.noticeStore.saved)
	require.Empty(t, h.publisher.complete)
	require.Empty(t, h.records.records)
}

func TestGenerateFolderNotAvailable(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Generate(context.Background(), sampleItem(), "missing", "")
	require.Error(t, err)
	require.True(t, apperr.Is(err, apperr.FolderNotAvailable))
	require.Equal(t, 0, h.engine.calls)
	// No valid folder means nothing to record the failure against.
	require.Empty(t, h.records.records)
}

func TestGenerateRegistersItemAndCompletesFolder(t *testing.T) {
	h := newHarness(t)
	h.addFolder(t, "folder-1", 1)

	pdf, err := h.svc.Generate(context.Background(), sampleItem(), "folder-1", "")
	require.NoError(t, err)
	require.NotEmpty(t, pdf)

	folder, err := h.folders.GetByID(dbctx.Background(), "folder-1")
	require.NoError(t, err)
	require.Equal(t, domain.FolderStatusCompleting, folder.Status)
	require.Len(t, folder.Items, 1)
	require.Len(t, h.publisher.complete, 1)
	require.Len(t, h.noticeStore.saved, 1)
}

func TestGenerateDoesNotCompleteEarly(t *testing.T) {
	h := newHarness(t)
	h.addFolder(t, "folder-1", 2)

	_, err := h.svc.Generate(context.Background(), sampleItem(), "folder-1", "")
	require.NoError(t, err)

	folder, err := h.folders.GetByID(dbctx.Background(), "folder-1")
	require.NoError(t, err)
	require.Equal(t, domain.FolderStatusProcessing, folder.Status)
	require.Empty(t, h.publisher.complete)
}

func TestGenerateFailureIsCountedOnce(t *testing.T) {
	h := newHarness(t)
	h.addFolder(t, "folder-1", 2)
	h.engine.response = pdfengine.Response{StatusCode: http.StatusBadRequest, ErrorMessage: "bad template"}

	item := sampleItem()
	for i := 0; i < 3; i++ {
		_, err := h.svc.Generate(context.Background(), item, "folder-1", "")
		require.Error(t, err)
		require.True(t, apperr.Is(err, apperr.PdfEngineError))
	}

	folder, err := h.folders.GetByID(dbctx.Background(), "folder-1")
	require.NoError(t, err)
	require.Equal(t, 1, folder.NumberOfElementsFailed)
	require.Len(t, h.records.records, 1)
	for _, record := range h.records.records {
		require.Equal(t, 3, record.NumberOfAttempts)
	}
	// Every failure announces, even when already recorded.
	require.Len(t, h.publisher.errors, 3)
}

func TestGenerateRecoveryClearsFailure(t *testing.T) {
	h := newHarness(t)
	h.addFolder(t, "folder-1", 1)
	h.engine.response = pdfengine.Response{StatusCode: http.StatusBadRequest, ErrorMessage: "transient"}

	item := sampleItem()
	_, err := h.svc.Generate(context.Background(), item, "folder-1", "")
	require.Error(t, err)

	folder, err := h.folders.GetByID(dbctx.Background(), "folder-1")
	require.NoError(t, err)
	require.Equal(t, 1, folder.NumberOfElementsFailed)
	require.Len(t, h.records.records, 1)

	var errorID string
	for _, record := range h.records.records {
		errorID = record.ErrorID
	}

	// Retry of the recorded failure succeeds.
	h.engine.response = pdfengine.Response{StatusCode: http.StatusOK, Pdf: []byte("%PDF-1.7")}
	_, err = h.svc.Generate(context.Background(), item, "folder-1", errorID)
	require.NoError(t, err)

	folder, err = h.folders.GetByID(dbctx.Background(), "folder-1")
	require.NoError(t, err)
	require.Equal(t, 0, folder.NumberOfElementsFailed)
	require.Empty(t, h.records.records)
	require.Equal(t, domain.FolderStatusCompleting, folder.Status)
	require.Len(t, h.publisher.complete, 1)
}

func TestGenerateSchemaViolationSkipsEngine(t *testing.T) {
	h := newHarness(t)
	h.addFolder(t, "folder-1", 1)
	h.templates.rules = `{
		"type": "object",
		"properties": {
			"notice": {
				"type": "object",
				"required": ["code", "subject", "paymentAmount"]
			}
		},
		"required": ["notice"]
	}`

	item := sampleItem()
	item.Data.Notice.Code = ""

	_, err := h.svc.Generate(context.Background(), item, "folder-1", "")
	require.Error(t, err)
	require.True(t, apperr.Is(err, apperr.MessageValidationError))
	require.Equal(t, 0, h.engine.calls)
	require.Len(t, h.records.records, 1)
}

func TestGenerateSchemaAcceptsValidPayload(t *testing.T) {
	h := newHarness(t)
	h.templates.rules = `{
		"type": "object",
		"properties": {
			"notice": {
				"type": "object",
				"required": ["code", "subject", "paymentAmount"]
			}
		},
		"required": ["notice"]
	}`

	_, err := h.svc.Generate(context.Background(), sampleItem(), "", "")
	require.NoError(t, err)
	require.Equal(t, 1, h.engine.calls)
}

func TestGenerateInstitutionDataIsAuthoritative(t *testing.T) {
	h := newHarness(t)

	item := sampleItem()
	item.Data.CreditorInstitution.FullName = "Spoofed Name"

	_, err := h.svc.Generate(context.Background(), item, "", "")
	require.NoError(t, err)
	// The request-side institution fields never reach the template: the
	// stored record replaces them wholesale before mapping.
}

func TestGenerateSaveFailureIsRecorded(t *testing.T) {
	h := newHarness(t)
	h.addFolder(t, "folder-1", 1)
	h.noticeStore.fail = true

	_, err := h.svc.Generate(context.Background(), sampleItem(), "folder-1", "")
	require.Error(t, err)
	require.True(t, apperr.Is(err, apperr.NoticeSaveError))

	folder, err := h.folders.GetByID(dbctx.Background(), "folder-1")
	require.NoError(t, err)
	require.Equal(t, 1, folder.NumberOfElementsFailed)
	require.Empty(t, h.publisher.complete)
}

func TestProcessMessageHappyPath(t *testing.T) {
	h := newHarness(t)
	h.addFolder(t, "folder-1", 1)

	raw := []byte(`{
		"folderId": "folder-1",
		"noticeData": {
			"templateId": "template",
			"data": {
				"notice": {"subject": "TARI 2024", "paymentAmount": 100, "code": "123456789012345678"},
				"creditorInstitution": {"taxCode": "12345678901"},
				"debtor": {"taxCode": "RSSMRA80A01H501U", "fullName": "Mario Rossi"}
			}
		}
	}`)

	require.NoError(t, h.svc.ProcessMessage(context.Background(), raw))
	folder, err := h.folders.GetByID(dbctx.Background(), "folder-1")
	require.NoError(t, err)
	require.Equal(t, domain.FolderStatusCompleting, folder.Status)
}

func TestProcessMessageUnparsableIsSwallowed(t *testing.T) {
	h := newHarness(t)

	err := h.svc.ProcessMessage(context.Background(), []byte("{not json"))
	require.NoError(t, err)

	require.Len(t, h.records.records, 1)
	for _, record := range h.records.records {
		require.Equal(t, domain.UnknownFolderID, record.FolderID)
		require.NotEmpty(t, record.Data)
	}
	require.Len(t, h.publisher.errors, 1)
}

func TestProcessMessageMissingNoticeData(t *testing.T) {
	h := newHarness(t)
	h.addFolder(t, "folder-1", 1)

	err := h.svc.ProcessMessage(context.Background(), []byte(`{"folderId": "folder-1"}`))
	require.Error(t, err)
	require.True(t, apperr.Is(err, apperr.MessageValidationError))
	require.Len(t, h.records.records, 1)

	folder, getErr := h.folders.GetByID(dbctx.Background(), "folder-1")
	require.NoError(t, getErr)
	require.Equal(t, 1, folder.NumberOfElementsFailed)
}

func TestProcessMessageMissingNoticeDataRedelivery(t *testing.T) {
	h := newHarness(t)
	h.addFolder(t, "folder-1", 3)

	raw := []byte(`{"folderId": "folder-1"}`)
	for i := 0; i < 5; i++ {
		err := h.svc.ProcessMessage(context.Background(), raw)
		require.Error(t, err)
	}

	// Redeliveries of the same message collapse into one record and move the
	// failure counter exactly once.
	require.Len(t, h.records.records, 1)
	for _, record := range h.records.records {
		require.Equal(t, 5, record.NumberOfAttempts)
	}
	folder, err := h.folders.GetByID(dbctx.Background(), "folder-1")
	require.NoError(t, err)
	require.Equal(t, 1, folder.NumberOfElementsFailed)
}

func TestProcessMessageMissingFolderIsSwallowed(t *testing.T) {
	h := newHarness(t)

	err := h.svc.ProcessMessage(context.Background(), []byte(`{"noticeData": {"templateId": "template"}}`))
	require.NoError(t, err)
	require.Len(t, h.records.records, 1)
	for _, record := range h.records.records {
		require.Equal(t, domain.UnknownFolderID, record.FolderID)
	}
}
