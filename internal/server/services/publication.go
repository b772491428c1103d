// Package services contains server-side business logic. This file implements
// PublicationService, which stores a submitted work and anchors its price and
// royalty terms on the ledger in two custodially signed transactions.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/DariusIMP/publish3-backend/internal/chain"
	"github.com/DariusIMP/publish3-backend/internal/common"
	"github.com/DariusIMP/publish3-backend/internal/cryptox"
	"github.com/DariusIMP/publish3-backend/internal/custody"
	"github.com/DariusIMP/publish3-backend/internal/dbx"
	"github.com/DariusIMP/publish3-backend/internal/logging"
	"github.com/DariusIMP/publish3-backend/internal/server/capability"
	"github.com/DariusIMP/publish3-backend/internal/server/locks"
	"github.com/DariusIMP/publish3-backend/internal/server/models"
	"github.com/DariusIMP/publish3-backend/internal/server/repositories/repomanager"
	"github.com/DariusIMP/publish3-backend/internal/server/storage"
	"github.com/google/uuid"
)

// rollbackTimeout bounds compensation after the commit deadline has passed.
const rollbackTimeout = 30 * time.Second

// State is the terminal state of one commit.
type State string

const (
	StatePublished  State = "PUBLISHED"
	StateRolledBack State = "ROLLED_BACK"
	StateOrphaned   State = "ORPHANED"
)

// Commit steps, as logged.
const (
	stepLock    = "lock"
	stepMint    = "mint_capability"
	stepPublish = "publish"
)

// CommitError is returned once a commit has passed the storage step and
// then failed. Err keeps the original classification for errors.Is.
type CommitError struct {
	PublicationID string
	State         State
	Step          string
	Err           error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("publication %s %s at %s: %v", e.PublicationID, e.State, e.Step, e.Err)
}

func (e *CommitError) Unwrap() error {
	return e.Err
}

// Custodian resolves custodial wallets and signs on their behalf.
type Custodian interface {
	Wallet(ctx context.Context, walletID string) (*custody.Wallet, error)
	Signer(w *custody.Wallet) chain.Signer
}

// TxExecutor runs one entry function to finality.
type TxExecutor interface {
	Execute(ctx context.Context, sender chain.AccountAddress, signer chain.Signer, entry chain.EntryFunction) (*chain.ExecutionResult, error)
}

// Upload is the submitted file. Content is read twice (hash, then store).
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Content     io.ReadSeeker
}

// CommitResult is returned for a published work.
type CommitResult struct {
	Publication   *models.Publication          `json:"publication"`
	Capability    *capability.SignedCapability `json:"capability"`
	CoAuthors     []string                     `json:"coauthor_addresses"`
	MintTxHash    string                       `json:"mint_tx_hash"`
	PublishTxHash string                       `json:"publish_tx_hash"`
}

// PublicationOptions are the fixed settings of a PublicationService.
type PublicationOptions struct {
	Module        chain.ModuleID
	CapabilityTTL time.Duration
	CommitTimeout time.Duration
}

type PublicationService struct {
	db           *sql.DB
	repomanager  repomanager.RepositoryManager
	store        storage.ObjectStore
	capabilities *capability.Signer
	custodian    Custodian
	executor     TxExecutor
	locker       locks.Locker
	opts         PublicationOptions
	logger       logging.Logger
	now          func() time.Time
	newID        func() string

	inflight sync.WaitGroup
}

func NewPublicationService(db *sql.DB, m repomanager.RepositoryManager, store storage.ObjectStore,
	capabilities *capability.Signer, custodian Custodian, executor TxExecutor, locker locks.Locker,
	opts PublicationOptions, logger logging.Logger) *PublicationService {
	return &PublicationService{
		db:           db,
		repomanager:  m,
		store:        store,
		capabilities: capabilities,
		custodian:    custodian,
		executor:     executor,
		locker:       locker,
		opts:         opts,
		logger:       logger,
		now:          time.Now,
		newID:        uuid.NewString,
	}
}

// intent is everything the ledger steps need, resolved before any write.
type intent struct {
	draft     *Draft
	userID    string
	authorIDs []string
	sender    chain.AccountAddress
	wallet    *custody.Wallet
	coAuthors []chain.AccountAddress
	filename  string
}

// Commit validates the submission, stores the file and a PENDING_ONCHAIN
// record, then mints the capability and publishes on chain. Once the record
// exists the commit no longer follows ctx cancellation and runs to a
// terminal state under the commit timeout.
func (s *PublicationService) Commit(ctx context.Context, userID string, form Form, upload *Upload) (*CommitResult, error) {
	s.inflight.Add(1)
	defer s.inflight.Done()

	in, err := s.prepare(ctx, userID, form, upload)
	if err != nil {
		return nil, err
	}
	d := in.draft

	digest, err := cryptox.HashReader(upload.Content)
	if err != nil {
		return nil, err
	}
	if _, err := upload.Content.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind upload: %w", err)
	}

	capab, err := s.capabilities.CreateCapability(digest.Bytes(), d.Price, in.sender, s.opts.CapabilityTTL)
	if err != nil {
		return nil, err
	}
	mintArgs, err := s.capabilities.Verify(capab)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrSerialization, err)
	}

	pub := &models.Publication{
		ID:         s.newID(),
		UserID:     in.userID,
		Title:      d.Title,
		About:      d.About,
		Tags:       d.Tags,
		PaperHash:  capab.PaperHash,
		Price:      d.Price,
		RoyaltyBps: d.RoyaltyBps,
		Status:     models.StatusPendingOnchain,
	}
	pub.S3Key = fmt.Sprintf("publications/%s/%s", pub.ID, in.filename)

	if err := s.store.Put(ctx, pub.S3Key, upload.Content, upload.Size, upload.ContentType); err != nil {
		return nil, fmt.Errorf("store object: %w", err)
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Publications(tx).Create(ctx, pub); err != nil {
			return err
		}
		if err := s.repomanager.PublicationAuthors(tx).AddAuthors(ctx, pub.ID, in.authorIDs); err != nil {
			return err
		}
		citationRepo := s.repomanager.Citations(tx)
		for _, cited := range d.CitationIDs {
			if cited == pub.ID {
				s.logger.Warn(ctx, "skipping self-citation", "publication_id", pub.ID)
				continue
			}
			c := &models.Citation{ID: s.newID(), CitingPublicationID: pub.ID, CitedPublicationID: cited}
			if err := citationRepo.Create(ctx, c); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.deleteObject(context.WithoutCancel(ctx), pub.S3Key)
		return nil, fmt.Errorf("error creating publication: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.CommitTimeout)
	defer cancel()

	log := s.logger.With("publication_id", pub.ID, "wallet", in.sender.String())
	return s.anchor(ctx, log, in, pub, capab, mintArgs)
}

// Drain blocks until every commit in progress has reached a terminal state,
// or ctx is done. Call it once no new commits can start.
func (s *PublicationService) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *PublicationService) anchor(ctx context.Context, log logging.Logger, in *intent, pub *models.Publication,
	capab *capability.SignedCapability, mintArgs *chain.MintCapabilityArgs) (*CommitResult, error) {

	unlock, err := s.locker.Lock(ctx, in.sender.String())
	if err != nil {
		return nil, s.rollback(ctx, log, pub, StateRolledBack, stepLock, err)
	}
	defer unlock()

	signer := s.custodian.Signer(in.wallet)

	mint, err := s.executor.Execute(ctx, in.sender, signer, chain.MintCapability(s.opts.Module, *mintArgs))
	if err != nil {
		return nil, s.rollback(ctx, log, pub, StateRolledBack, stepMint, err)
	}
	log.Debug(ctx, "capability minted", "tx_hash", mint.Hash, "gas_used", mint.GasUsed)

	published, err := s.executor.Execute(ctx, in.sender, signer, chain.Publish(s.opts.Module, chain.PublishArgs{
		PaperHash:  mintArgs.PaperHash,
		Price:      mintArgs.Price,
		RoyaltyBps: uint64(in.draft.RoyaltyBps),
		CoAuthors:  in.coAuthors,
	}))
	if err != nil {
		return nil, s.rollback(ctx, log, pub, StateOrphaned, stepPublish, err)
	}

	// the ledger effect is final; a failed update is only reported
	if err := s.repomanager.Publications(s.db).UpdateStatus(ctx, pub.ID, models.StatusPublished, published.Hash); err != nil {
		log.Warn(ctx, "could not mark publication published", "tx_hash", published.Hash, "error", err)
	}
	pub.Status = models.StatusPublished
	pub.TxHash = published.Hash

	log.Info(ctx, "publication committed", "step", stepPublish, "state", StatePublished,
		"mint_tx_hash", mint.Hash, "tx_hash", published.Hash)

	coAuthors := make([]string, len(in.coAuthors))
	for i, a := range in.coAuthors {
		coAuthors[i] = a.String()
	}
	return &CommitResult{
		Publication:   pub,
		Capability:    capab,
		CoAuthors:     coAuthors,
		MintTxHash:    mint.Hash,
		PublishTxHash: published.Hash,
	}, nil
}

// rollback removes the off-chain state of a failed commit. The record
// delete is authoritative; if it fails the record is marked FAILED instead.
func (s *PublicationService) rollback(ctx context.Context, log logging.Logger, pub *models.Publication,
	state State, step string, cause error) error {

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
	defer cancel()

	repo := s.repomanager.Publications(s.db)
	if err := repo.Delete(ctx, pub.ID); err != nil {
		log.Warn(ctx, "rollback: delete publication record", "error", err)
		if err := repo.UpdateStatus(ctx, pub.ID, models.StatusFailed, ""); err != nil {
			log.Warn(ctx, "rollback: mark publication failed", "error", err)
		}
	}
	s.deleteObject(ctx, pub.S3Key)

	kind := "submission"
	if errors.Is(cause, common.ErrExecutionFailed) {
		kind = "execution"
	}
	log.Error(ctx, "publication commit failed", "step", step, "state", state, "failure", kind, "error", cause)

	return &CommitError{PublicationID: pub.ID, State: state, Step: step, Err: cause}
}

func (s *PublicationService) deleteObject(ctx context.Context, key string) {
	if err := s.store.Delete(ctx, key); err != nil {
		s.logger.Warn(ctx, "rollback: delete stored object", "key", key, "error", err)
	}
}

// prepare runs every check that needs no write: form fields, the upload,
// cited publications and wallet resolution.
func (s *PublicationService) prepare(ctx context.Context, userID string, form Form, upload *Upload) (*intent, error) {
	if userID == "" {
		return nil, common.ErrorUnauthorized
	}
	d, err := ParseDraft(form)
	if err != nil {
		return nil, err
	}
	if upload == nil || upload.Content == nil {
		return nil, fieldError("file", "is required")
	}
	filename, err := storageName(upload.Filename)
	if err != nil {
		return nil, err
	}

	pubRepo := s.repomanager.Publications(s.db)
	for _, cited := range d.CitationIDs {
		if _, err := pubRepo.GetByID(ctx, cited); err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return nil, fieldError("citations", "unknown publication %s", cited)
			}
			return nil, err
		}
	}

	in := &intent{draft: d, userID: userID, filename: filename}

	// the submitter always leads the byline
	in.authorIDs = []string{userID}
	var coAuthorIDs []string
	for _, id := range d.AuthorIDs {
		if id != userID {
			in.authorIDs = append(in.authorIDs, id)
			coAuthorIDs = append(coAuthorIDs, id)
		}
	}

	walletRepo := s.repomanager.Wallets(s.db)
	own, err := walletRepo.GetPrimaryWallet(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fieldError("wallet", "no primary wallet linked to this account")
		}
		return nil, err
	}
	if in.sender, err = chain.ParseAddress(own.WalletAddress); err != nil {
		return nil, fmt.Errorf("%w: wallet %s: %w", common.ErrSerialization, own.WalletID, err)
	}

	linked, err := walletRepo.GetPrimaryWallets(ctx, coAuthorIDs)
	if err != nil {
		return nil, err
	}
	byUser := make(map[string]string, len(linked))
	for _, w := range linked {
		byUser[w.UserID] = w.WalletAddress
	}
	for _, id := range coAuthorIDs {
		raw, ok := byUser[id]
		if !ok {
			return nil, fieldError("authors", "author %s has no primary wallet", id)
		}
		addr, err := chain.ParseAddress(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: wallet of %s: %w", common.ErrSerialization, id, err)
		}
		in.coAuthors = append(in.coAuthors, addr)
	}

	in.wallet, err = s.custodian.Wallet(ctx, own.WalletID)
	if err != nil {
		if errors.Is(err, common.ErrNetwork) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", common.ErrSigning, err)
	}
	return in, nil
}

// ReportStuck logs PENDING_ONCHAIN records older than olderThan. They are
// left over from a process that stopped mid-commit and need manual
// reconciliation against the ledger.
func (s *PublicationService) ReportStuck(ctx context.Context, olderThan time.Duration) ([]*models.Publication, error) {
	stuck, err := s.repomanager.Publications(s.db).ListPendingBefore(ctx, s.now().Add(-olderThan))
	if err != nil {
		return nil, err
	}
	for _, p := range stuck {
		s.logger.Warn(ctx, "publication stuck in PENDING_ONCHAIN",
			"publication_id", p.ID, "user_id", p.UserID, "paper_hash", p.PaperHash, "created_at", p.CreatedAt)
	}
	return stuck, nil
}

// Get returns common.ErrorNotFound for unknown ids.
func (s *PublicationService) Get(ctx context.Context, id string) (*models.Publication, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	return s.repomanager.Publications(s.db).GetByID(ctx, id)
}

// Page bounds for List.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// List returns one page, newest first. page starts at 1.
// Paging normalises a requested page and page size: pages start at 1, a
// missing size falls back to DefaultPageSize and sizes cap at MaxPageSize.
func Paging(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return page, limit
}

func (s *PublicationService) List(ctx context.Context, page, limit int) ([]*models.Publication, error) {
	page, limit = Paging(page, limit)
	return s.repomanager.Publications(s.db).List(ctx, limit, (page-1)*limit)
}

func (s *PublicationService) Authors(ctx context.Context, id string) ([]*models.PublicationAuthor, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.repomanager.PublicationAuthors(s.db).ListByPublication(ctx, id)
}

func (s *PublicationService) Citations(ctx context.Context, id string) ([]*models.Citation, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.repomanager.Citations(s.db).ListByCiting(ctx, id)
}

func checkID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fieldError("id", "must be a publication id")
	}
	return nil
}
