package services

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/pagopa/payment-notice-generator/internal/clients/pdfengine"
	"github.com/pagopa/payment-notice-generator/internal/data/repos/generation"
	"github.com/pagopa/payment-notice-generator/internal/domain"
	"github.com/pagopa/payment-notice-generator/internal/events"
	"github.com/pagopa/payment-notice-generator/internal/notices"
	"github.com/pagopa/payment-notice-generator/internal/platform/apperr"
	"github.com/pagopa/payment-notice-generator/internal/platform/dbctx"
	"github.com/pagopa/payment-notice-generator/internal/platform/logger"
	"github.com/pagopa/payment-notice-generator/internal/storage"
)

// GenerationService is the orchestrator of the whole pipeline: it resolves
// institution and template, validates and maps the payload, invokes the
// render engine, persists the artifact, and keeps the owning folder's batch
// state moving.
type GenerationService interface {
	// Generate produces one notice PDF. With a folder id the item is tracked
	// against that batch: failures land in the error ledger and completion is
	// attempted after registration. Without one the call is fire-and-return.
	// A non-empty errorID marks the call as a retry of a recorded failure.
	Generate(ctx context.Context, item domain.NoticeGenerationRequestItem, folderID string, errorID string) ([]byte, error)
	// ProcessMessage is the async entrypoint: it decodes one queued request
	// and runs Generate. Undecodable bodies are recorded and swallowed, since
	// redelivery cannot fix them.
	ProcessMessage(ctx context.Context, raw []byte) error
}

type generationService struct {
	log          *logger.Logger
	folders      generation.FolderRepo
	templates    storage.TemplateStorage
	institutions storage.InstitutionStorage
	noticeStore  storage.NoticeStorage
	pdfEngine    pdfengine.Client
	ledger       ErrorLedger
	publisher    events.Publisher
}

func NewGenerationService(
	log *logger.Logger,
	folders generation.FolderRepo,
	templates storage.TemplateStorage,
	institutions storage.InstitutionStorage,
	noticeStore storage.NoticeStorage,
	pdfEngine pdfengine.Client,
	ledger ErrorLedger,
	publisher events.Publisher,
) GenerationService {
	return &generationService{
		log:          log.With("service", "GenerationService"),
		folders:      folders,
		templates:    templates,
		institutions: institutions,
		noticeStore:  noticeStore,
		pdfEngine:    pdfEngine,
		ledger:       ledger,
		publisher:    publisher,
	}
}

func (s *generationService) Generate(ctx context.Context, item domain.NoticeGenerationRequestItem, folderID string, errorID string) ([]byte, error) {
	if folderID != "" {
		folder, err := s.folders.GetByID(dbctx.Context{Ctx: ctx}, folderID)
		if err != nil {
			return nil, apperr.Wrap(apperr.Internal, err)
		}
		if folder == nil {
			// No valid folder, so nothing to record the failure against.
			return nil, apperr.Newf(apperr.FolderNotAvailable, "folder %q not available", folderID)
		}
	}

	pdf, err := s.generate(ctx, &item)
	if err != nil {
		if folderID != "" {
			s.ledger.RecordFailure(ctx, errorID, notices.ItemID(item), folderID, &item, err.Error())
		}
		return nil, err
	}

	if folderID != "" {
		itemID := notices.ItemID(item)
		if err := s.noticeStore.SaveNotice(ctx, pdf, folderID, itemID); err != nil {
			s.ledger.RecordFailure(ctx, errorID, itemID, folderID, &item, err.Error())
			return nil, err
		}
		// Clear before the completion attempt: a recovered item must not be
		// counted both as registered and as still failed.
		if errorID != "" {
			s.ledger.ClearOnRecovery(ctx, errorID, folderID)
		}
		s.addNoticeIntoFolder(ctx, folderID, itemID)
	}

	return pdf, nil
}

// generate runs the per-item pipeline up to the rendered bytes. It touches no
// batch state, so it is safe to re-run for the same item.
func (s *generationService) generate(ctx context.Context, item *domain.NoticeGenerationRequestItem) ([]byte, error) {
	institution, err := s.institutions.GetInstitution(ctx, item.Data.CreditorInstitution.TaxCode)
	if err != nil {
		return nil, err
	}
	// The stored institution record is authoritative over request data.
	item.Data.CreditorInstitution = *institution

	resource, err := s.templates.GetTemplateResource(ctx, item.TemplateID)
	if err != nil {
		return nil, err
	}
	if err := s.validateAgainstRules(item, resource.TemplateValidationRules); err != nil {
		return nil, err
	}

	templateZip, err := s.templates.GetTemplate(ctx, item.TemplateID)
	if err != nil {
		return nil, err
	}

	templateData, err := notices.MapTemplateData(item.Data)
	if err != nil {
		return nil, apperr.Wrap(apperr.MessageValidationError, err)
	}
	payload, err := json.Marshal(templateData)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err)
	}

	resp := s.pdfEngine.GeneratePDF(ctx, templateZip, payload)
	if !resp.OK() {
		return nil, apperr.Newf(apperr.PdfEngineError, "pdf engine returned %d: %s", resp.StatusCode, resp.ErrorMessage)
	}
	return resp.Pdf, nil
}

// validateAgainstRules checks the raw request payload against the template's
// declared JSON Schema. Templates without rules accept anything.
func (s *generationService) validateAgainstRules(item *domain.NoticeGenerationRequestItem, rules string) error {
	if strings.TrimSpace(rules) == "" {
		return nil
	}
	schema, err := jsonschema.CompileString("validation-rules.json", rules)
	if err != nil {
		return apperr.Wrap(apperr.TemplateClientError, err)
	}

	raw, err := json.Marshal(item.Data)
	if err != nil {
		return apperr.Wrap(apperr.Internal, err)
	}
	var payload interface{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return apperr.Wrap(apperr.Internal, err)
	}

	if err := schema.Validate(payload); err != nil {
		return apperr.Wrap(apperr.MessageValidationError, err)
	}
	return nil
}

// addNoticeIntoFolder registers the generated item and attempts the
// completion transition. The conditional update inside TryComplete guarantees
// at most one caller publishes the complete event, whatever the interleaving
// of concurrent workers.
func (s *generationService) addNoticeIntoFolder(ctx context.Context, folderID string, itemID string) {
	dbc := dbctx.Context{Ctx: ctx}

	if _, err := s.folders.RegisterItem(dbc, folderID, itemID); err != nil {
		s.log.Error("Item registration failed", "folder_id", folderID, "item_id", itemID, "error", err)
		return
	}

	folder, err := s.folders.GetByID(dbc, folderID)
	if err != nil || folder == nil {
		s.log.Error("Folder re-read failed after registration", "folder_id", folderID, "error", err)
		return
	}
	if folder.NumberOfElementsTotal > len(folder.Items)+folder.NumberOfElementsFailed {
		return
	}

	done, err := s.folders.TryComplete(dbc, folderID)
	if err != nil {
		s.log.Error("Completion attempt failed", "folder_id", folderID, "error", err)
		return
	}
	if !done {
		return
	}

	completed, err := s.folders.GetByID(dbc, folderID)
	if err != nil || completed == nil {
		s.log.Error("Folder re-read failed after completion", "folder_id", folderID, "error", err)
		return
	}
	if err := s.publisher.NoticeComplete(ctx, completed); err != nil {
		s.log.Error("Complete event publish failed", "folder_id", folderID, "error", err)
	}
	s.log.Info("Folder completed", "folder_id", folderID,
		"items", len(completed.Items), "failed", completed.NumberOfElementsFailed)
}

func (s *generationService) ProcessMessage(ctx context.Context, raw []byte) error {
	var msg domain.NoticeRequestMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		s.log.Error("Undecodable generation request", "error", err)
		s.ledger.RecordUnparsable(ctx, raw)
		return nil
	}
	if msg.FolderID == "" {
		// Without a folder identity there is no batch to attribute the
		// message to; treat it like an undecodable body.
		s.ledger.RecordUnparsable(ctx, raw)
		return nil
	}
	if msg.NoticeData == nil {
		err := apperr.New(apperr.MessageValidationError, "missing notice data")
		// The key must be stable across redeliveries so the folder's failure
		// counter moves once, not once per attempt.
		s.ledger.RecordFailure(ctx, msg.ErrorID, "missing-notice-data-"+msg.FolderID, msg.FolderID, nil, err.Error())
		return err
	}

	_, err := s.Generate(ctx, *msg.NoticeData, msg.FolderID, msg.ErrorID)
	return err
}
