package services

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"database/sql"
	"encoding/base64"
	"errors"
	"io"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/DariusIMP/publish3-backend/internal/chain"
	"github.com/DariusIMP/publish3-backend/internal/common"
	"github.com/DariusIMP/publish3-backend/internal/custody"
	"github.com/DariusIMP/publish3-backend/internal/dbx"
	"github.com/DariusIMP/publish3-backend/internal/logging"
	"github.com/DariusIMP/publish3-backend/internal/server/capability"
	"github.com/DariusIMP/publish3-backend/internal/server/models"
	"github.com/DariusIMP/publish3-backend/internal/server/repositories/citations"
	"github.com/DariusIMP/publish3-backend/internal/server/repositories/publicationauthors"
	"github.com/DariusIMP/publish3-backend/internal/server/repositories/publications"
	"github.com/DariusIMP/publish3-backend/internal/server/repositories/wallets"
	"github.com/stretchr/testify/require"
)

// -------- repositories --------

type statusUpdate struct {
	id, status, txHash string
}

type fakePublicationsRepo struct {
	mu        sync.Mutex
	items     map[string]*models.Publication
	created   []*models.Publication
	deleted   []string
	updates   []statusUpdate
	createErr error
	deleteErr error
	updateErr error
	listErr   error
	listArgs  [2]int
	cutoff    time.Time
}

func (f *fakePublicationsRepo) Create(ctx context.Context, p *models.Publication) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	cp := *p
	f.items[p.ID] = &cp
	f.created = append(f.created, &cp)
	return nil
}

func (f *fakePublicationsRepo) GetByID(ctx context.Context, id string) (*models.Publication, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.items[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return p, nil
}

func (f *fakePublicationsRepo) List(ctx context.Context, limit, offset int) ([]*models.Publication, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listArgs = [2]int{limit, offset}
	return []*models.Publication{}, f.listErr
}

func (f *fakePublicationsRepo) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.items[id]; !ok {
		return common.ErrorNotFound
	}
	delete(f.items, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakePublicationsRepo) UpdateStatus(ctx context.Context, id, status, txHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, statusUpdate{id: id, status: status, txHash: txHash})
	if f.updateErr != nil {
		return f.updateErr
	}
	if p, ok := f.items[id]; ok {
		p.Status = status
		if txHash != "" {
			p.TxHash = txHash
		}
	}
	return nil
}

func (f *fakePublicationsRepo) ListPendingBefore(ctx context.Context, cutoff time.Time) ([]*models.Publication, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cutoff = cutoff
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []*models.Publication
	for _, p := range f.items {
		if p.Status == models.StatusPendingOnchain && p.CreatedAt.Before(cutoff) {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeAuthorsRepo struct {
	byPub map[string][]string
	err   error
}

func (f *fakeAuthorsRepo) AddAuthors(ctx context.Context, publicationID string, authorIDs []string) error {
	if f.err != nil {
		return f.err
	}
	f.byPub[publicationID] = append([]string(nil), authorIDs...)
	return nil
}

func (f *fakeAuthorsRepo) ListByPublication(ctx context.Context, publicationID string) ([]*models.PublicationAuthor, error) {
	out := []*models.PublicationAuthor{}
	for i, a := range f.byPub[publicationID] {
		out = append(out, &models.PublicationAuthor{PublicationID: publicationID, AuthorID: a, AuthorOrder: i + 1})
	}
	return out, nil
}

type fakeCitationsRepo struct {
	created []*models.Citation
}

func (f *fakeCitationsRepo) Create(ctx context.Context, c *models.Citation) error {
	f.created = append(f.created, c)
	return nil
}

func (f *fakeCitationsRepo) ListByCiting(ctx context.Context, publicationID string) ([]*models.Citation, error) {
	out := []*models.Citation{}
	for _, c := range f.created {
		if c.CitingPublicationID == publicationID {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakeWalletsRepo struct {
	byUser map[string]models.Wallet
	err    error
}

func (f *fakeWalletsRepo) GetPrimaryWallet(ctx context.Context, userID string) (*models.Wallet, error) {
	if f.err != nil {
		return nil, f.err
	}
	w, ok := f.byUser[userID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &w, nil
}

func (f *fakeWalletsRepo) GetPrimaryWallets(ctx context.Context, userIDs []string) ([]*models.UserWallet, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := []*models.UserWallet{}
	for _, id := range userIDs {
		if w, ok := f.byUser[id]; ok {
			out = append(out, &models.UserWallet{UserID: id, Wallet: w})
		}
	}
	return out, nil
}

type fakeManager struct {
	pubs      *fakePublicationsRepo
	authors   *fakeAuthorsRepo
	citations *fakeCitationsRepo
	wallets   *fakeWalletsRepo
}

func newFakeManager() *fakeManager {
	return &fakeManager{
		pubs:      &fakePublicationsRepo{items: map[string]*models.Publication{}},
		authors:   &fakeAuthorsRepo{byPub: map[string][]string{}},
		citations: &fakeCitationsRepo{},
		wallets:   &fakeWalletsRepo{byUser: map[string]models.Wallet{}},
	}
}

func (m *fakeManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeManager) Publications(dbx.DBTX) publications.Repository {
	return m.pubs
}
func (m *fakeManager) PublicationAuthors(dbx.DBTX) publicationauthors.Repository {
	return m.authors
}
func (m *fakeManager) Citations(dbx.DBTX) citations.Repository { return m.citations }
func (m *fakeManager) Wallets(dbx.DBTX) wallets.Repository     { return m.wallets }

// -------- object store --------

type fakeStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	deleted   []string
	putErr    error
	deleteErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string][]byte{}}
}

func (f *fakeStore) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	if f.putErr != nil {
		return f.putErr
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = b
	return nil
}

func (f *fakeStore) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, key)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.objects, key)
	return nil
}

// -------- custodian and ledger --------

type fakeSigner struct {
	pub ed25519.PublicKey
}

func (s *fakeSigner) PublicKey() ed25519.PublicKey { return s.pub }
func (s *fakeSigner) SignMessage(ctx context.Context, msg []byte) ([]byte, error) {
	return nil, errors.New("not used")
}

type fakeCustodian struct {
	wallets map[string]*custody.Wallet
	err     error
}

func (f *fakeCustodian) Wallet(ctx context.Context, walletID string) (*custody.Wallet, error) {
	if f.err != nil {
		return nil, f.err
	}
	w, ok := f.wallets[walletID]
	if !ok {
		return nil, custody.ErrWalletNotFound
	}
	return w, nil
}

func (f *fakeCustodian) Signer(w *custody.Wallet) chain.Signer {
	return &fakeSigner{pub: w.PublicKey}
}

type execCall struct {
	sender chain.AccountAddress
	entry  chain.EntryFunction
}

type fakeExecutor struct {
	mu      sync.Mutex
	calls   []execCall
	errs    map[string]error
	onCall  func(ctx context.Context, entry chain.EntryFunction)
	counter int
}

func (f *fakeExecutor) Execute(ctx context.Context, sender chain.AccountAddress, signer chain.Signer, entry chain.EntryFunction) (*chain.ExecutionResult, error) {
	if f.onCall != nil {
		f.onCall(ctx, entry)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, execCall{sender: sender, entry: entry})
	if err := f.errs[entry.Function]; err != nil {
		return nil, err
	}
	f.counter++
	return &chain.ExecutionResult{Hash: "0x" + entry.Function + "-" + strconv.Itoa(f.counter), Version: uint64(f.counter), GasUsed: 7}, nil
}

func (f *fakeExecutor) functions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.entry.Function
	}
	return out
}

type recordingLocker struct {
	mu     sync.Mutex
	held   map[string]bool
	keys   []string
	lockFn func(ctx context.Context) error
}

func (l *recordingLocker) Lock(ctx context.Context, key string) (func(), error) {
	if l.lockFn != nil {
		if err := l.lockFn(ctx); err != nil {
			return nil, err
		}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.held[key] = true
	l.keys = append(l.keys, key)
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.held[key] = false
	}, nil
}

func (l *recordingLocker) isHeld(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held[key]
}

// -------- harness --------

const (
	testUser     = "did:privy:alice"
	testCoAuthor = "did:privy:bob"
	testWalletID = "wallet-alice"
)

var (
	testSender   = chain.MustParseAddress("0xa11ce")
	testCoSender = chain.MustParseAddress("0xb0b")
	testModule   = chain.ModuleID{Address: chain.MustParseAddress("0xc0ffee"), Name: "publication"}
)

type harness struct {
	svc       *PublicationService
	mock      sqlmock.Sqlmock
	repos     *fakeManager
	store     *fakeStore
	custodian *fakeCustodian
	executor  *fakeExecutor
	locker    *recordingLocker
	capKey    ed25519.PrivateKey
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, capKey, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	signer, err := capability.NewSigner(base64.StdEncoding.EncodeToString(capKey.Seed()))
	require.NoError(t, err)

	userPub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	h := &harness{
		mock:  mock,
		repos: newFakeManager(),
		store: newFakeStore(),
		custodian: &fakeCustodian{wallets: map[string]*custody.Wallet{
			testWalletID: {ID: testWalletID, Address: testSender.String(), ChainType: "aptos", PublicKey: userPub},
		}},
		executor: &fakeExecutor{errs: map[string]error{}},
		locker:   &recordingLocker{held: map[string]bool{}},
		capKey:   capKey,
	}
	h.repos.wallets.byUser[testUser] = models.Wallet{WalletID: testWalletID, WalletAddress: testSender.String()}
	h.repos.wallets.byUser[testCoAuthor] = models.Wallet{WalletID: "wallet-bob", WalletAddress: testCoSender.String()}

	h.svc = NewPublicationService(db, h.repos, h.store, signer, h.custodian, h.executor, h.locker,
		PublicationOptions{Module: testModule, CapabilityTTL: time.Hour, CommitTimeout: time.Minute},
		logging.Nop{})
	return h
}

func validForm() Form {
	return Form{
		Title:      "On Things",
		About:      "a paper",
		Tags:       `["math"]`,
		Authors:    `["` + testUser + `"]`,
		Citations:  `[]`,
		Price:      "1000",
		RoyaltyBps: "100",
	}
}

func testUpload(content string) *Upload {
	return &Upload{Filename: "paper.pdf", ContentType: "application/pdf", Size: int64(len(content)), Content: bytes.NewReader([]byte(content))}
}
