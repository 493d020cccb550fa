package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sort"
	"testing"
	"time"

	"github.com/cryptoticketing/ticketd/internal/domain"
)

// In-memory implementations of the domain interfaces. They are not
// concurrency safe; tests drive them from one goroutine.

type fakeContract struct {
	caller          string
	sale            domain.SaleOverview
	entered         map[string]bool
	winners         map[string]bool
	maxPrice        *big.Int
	payments        []string
	transferredTo   []string
	claimCalls      int
	withdrawCalls   int
	lotteryCalls    int
	failClaimTicket error
}

func newFakeContract(caller string) *fakeContract {
	return &fakeContract{
		caller:   domain.NormalizeAddress(caller),
		entered:  map[string]bool{},
		winners:  map[string]bool{},
		maxPrice: big.NewInt(0),
	}
}

func (f *fakeContract) CallerAddress() string { return f.caller }

func (f *fakeContract) GetSaleOverview(ctx context.Context, eventID uint64) (domain.SaleOverview, error) {
	s := f.sale
	s.EventID = eventID
	return s, nil
}

func (f *fakeContract) HasEnteredSale(ctx context.Context, eventID uint64, wallet string) (bool, error) {
	return f.entered[domain.NormalizeAddress(wallet)], nil
}

func (f *fakeContract) IsSaleWinner(ctx context.Context, eventID uint64, wallet string) (bool, error) {
	return f.winners[domain.NormalizeAddress(wallet)], nil
}

func (f *fakeContract) GetEventMaxTransferPrice(ctx context.Context, eventID uint64) (*big.Int, error) {
	return new(big.Int).Set(f.maxPrice), nil
}

func (f *fakeContract) EnterSale(ctx context.Context, eventID uint64, stake *big.Int) (domain.TxReceipt, error) {
	f.entered[f.caller] = true
	return domain.TxReceipt{TxHash: "0xenter"}, nil
}

func (f *fakeContract) ClaimTicket(ctx context.Context, eventID uint64) (domain.TxReceipt, error) {
	f.claimCalls++
	if f.failClaimTicket != nil {
		return domain.TxReceipt{}, f.failClaimTicket
	}
	return domain.TxReceipt{TxHash: "0xclaim"}, nil
}

func (f *fakeContract) TransferWinnerStatus(ctx context.Context, eventID uint64, to string) (domain.TxReceipt, error) {
	to = domain.NormalizeAddress(to)
	f.transferredTo = append(f.transferredTo, to)
	f.winners[to] = true
	f.winners[f.caller] = false
	return domain.TxReceipt{TxHash: "0xtransfer"}, nil
}

func (f *fakeContract) WithdrawEntryBeforeLottery(ctx context.Context, eventID uint64) (domain.TxReceipt, error) {
	f.entered[f.caller] = false
	return domain.TxReceipt{TxHash: "0xexit"}, nil
}

func (f *fakeContract) WithdrawStake(ctx context.Context, eventID uint64) (domain.TxReceipt, error) {
	f.withdrawCalls++
	return domain.TxReceipt{TxHash: "0xrefund"}, nil
}

func (f *fakeContract) ConfigureEventSale(ctx context.Context, eventID uint64, stake *big.Int, supply, maxTransferPct uint64) (domain.TxReceipt, error) {
	return domain.TxReceipt{TxHash: "0xconfigure"}, nil
}

func (f *fakeContract) RunLottery(ctx context.Context, eventID uint64) (domain.TxReceipt, error) {
	f.lotteryCalls++
	return domain.TxReceipt{TxHash: "0xlottery"}, nil
}

func (f *fakeContract) SendPayment(ctx context.Context, to string, amount *big.Int) (domain.TxReceipt, error) {
	f.payments = append(f.payments, fmt.Sprintf("%s:%s", domain.NormalizeAddress(to), amount))
	return domain.TxReceipt{TxHash: "0xpay"}, nil
}

type fakeSnapshotCache struct {
	snaps map[string]domain.ParticipantSnapshot
}

func newFakeSnapshotCache() *fakeSnapshotCache {
	return &fakeSnapshotCache{snaps: map[string]domain.ParticipantSnapshot{}}
}

func snapKey(eventID uint64, wallet string) string {
	return fmt.Sprintf("%d:%s", eventID, domain.NormalizeAddress(wallet))
}

func (f *fakeSnapshotCache) Get(ctx context.Context, eventID uint64, wallet string) (domain.ParticipantSnapshot, error) {
	s, ok := f.snaps[snapKey(eventID, wallet)]
	if !ok {
		return domain.ParticipantSnapshot{}, domain.ErrNotFound
	}
	return s, nil
}

func (f *fakeSnapshotCache) Put(ctx context.Context, snap domain.ParticipantSnapshot) error {
	key := snapKey(snap.EventID, snap.Wallet)
	if prev, ok := f.snaps[key]; ok && prev.HasClaimedRefund {
		snap.HasClaimedRefund = true
	}
	f.snaps[key] = snap
	return nil
}

func (f *fakeSnapshotCache) MarkRefundClaimed(ctx context.Context, eventID uint64, wallet string) error {
	key := snapKey(eventID, wallet)
	s, ok := f.snaps[key]
	if !ok {
		return domain.ErrNotFound
	}
	s.HasClaimedRefund = true
	f.snaps[key] = s
	return nil
}

func (f *fakeSnapshotCache) Purge(ctx context.Context, eventID uint64, wallet string) error {
	delete(f.snaps, snapKey(eventID, wallet))
	return nil
}

type fakeSaleCache struct {
	sales map[uint64]domain.SaleOverview
}

func newFakeSaleCache() *fakeSaleCache { return &fakeSaleCache{sales: map[uint64]domain.SaleOverview{}} }

func (f *fakeSaleCache) Get(ctx context.Context, eventID uint64) (domain.SaleOverview, error) {
	s, ok := f.sales[eventID]
	if !ok {
		return domain.SaleOverview{}, domain.ErrNotFound
	}
	return s, nil
}

func (f *fakeSaleCache) Put(ctx context.Context, overview domain.SaleOverview) error {
	f.sales[overview.EventID] = overview
	return nil
}

func (f *fakeSaleCache) Invalidate(ctx context.Context, eventID uint64) error {
	delete(f.sales, eventID)
	return nil
}

type fakeViewCache struct {
	views map[string]domain.DerivedView
}

func newFakeViewCache() *fakeViewCache { return &fakeViewCache{views: map[string]domain.DerivedView{}} }

func (f *fakeViewCache) Get(ctx context.Context, eventID uint64, wallet string) (domain.DerivedView, error) {
	v, ok := f.views[snapKey(eventID, wallet)]
	if !ok {
		return domain.DerivedView{}, domain.ErrNotFound
	}
	return v, nil
}

func (f *fakeViewCache) Put(ctx context.Context, view domain.DerivedView) error {
	f.views[snapKey(view.EventID, view.Wallet)] = view
	return nil
}

func (f *fakeViewCache) Invalidate(ctx context.Context, eventID uint64, wallet string) error {
	delete(f.views, snapKey(eventID, wallet))
	return nil
}

type fakeBus struct {
	published map[string][][]byte
}

func newFakeBus() *fakeBus { return &fakeBus{published: map[string][][]byte{}} }

func (f *fakeBus) Publish(ctx context.Context, channel string, payload []byte) error {
	f.published[channel] = append(f.published[channel], payload)
	return nil
}

func (f *fakeBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

type fakeSoldKeyStore struct {
	keys map[string]domain.SoldClaimRightKey
}

func newFakeSoldKeyStore() *fakeSoldKeyStore {
	return &fakeSoldKeyStore{keys: map[string]domain.SoldClaimRightKey{}}
}

func (f *fakeSoldKeyStore) Add(ctx context.Context, k domain.SoldClaimRightKey) error {
	k.Seller = domain.NormalizeAddress(k.Seller)
	if _, ok := f.keys[k.Key()]; ok {
		return nil
	}
	f.keys[k.Key()] = k
	return nil
}

func (f *fakeSoldKeyStore) Exists(ctx context.Context, eventID uint64, seller string) (bool, error) {
	_, ok := f.keys[domain.FormatSoldKey(eventID, seller)]
	return ok, nil
}

func (f *fakeSoldKeyStore) List(ctx context.Context) ([]domain.SoldClaimRightKey, error) {
	var out []domain.SoldClaimRightKey
	for _, k := range f.keys {
		out = append(out, k)
	}
	return out, nil
}

func (f *fakeSoldKeyStore) ListBySeller(ctx context.Context, seller string) ([]domain.SoldClaimRightKey, error) {
	seller = domain.NormalizeAddress(seller)
	var out []domain.SoldClaimRightKey
	for _, k := range f.keys {
		if k.Seller == seller {
			out = append(out, k)
		}
	}
	return out, nil
}

func (f *fakeSoldKeyStore) Delete(ctx context.Context, eventID uint64, seller string) error {
	key := domain.FormatSoldKey(eventID, seller)
	if _, ok := f.keys[key]; !ok {
		return domain.ErrNotFound
	}
	delete(f.keys, key)
	return nil
}

type fakeReceiptStore struct {
	receipts map[string]domain.ClaimReceipt
}

func newFakeReceiptStore() *fakeReceiptStore {
	return &fakeReceiptStore{receipts: map[string]domain.ClaimReceipt{}}
}

func (f *fakeReceiptStore) Add(ctx context.Context, r domain.ClaimReceipt) error {
	key := snapKey(r.EventID, r.Wallet)
	if _, ok := f.receipts[key]; ok {
		return domain.ErrAlreadyExists
	}
	f.receipts[key] = r
	return nil
}

func (f *fakeReceiptStore) Exists(ctx context.Context, eventID uint64, wallet string) (bool, error) {
	_, ok := f.receipts[snapKey(eventID, wallet)]
	return ok, nil
}

func (f *fakeReceiptStore) ListByWallet(ctx context.Context, wallet string) ([]domain.ClaimReceipt, error) {
	wallet = domain.NormalizeAddress(wallet)
	var out []domain.ClaimReceipt
	for _, r := range f.receipts {
		if r.Wallet == wallet {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeListingStore struct {
	listings map[string]domain.ResaleListing
}

func newFakeListingStore() *fakeListingStore {
	return &fakeListingStore{listings: map[string]domain.ResaleListing{}}
}

func (f *fakeListingStore) Create(ctx context.Context, l domain.ResaleListing) error {
	l.Seller = domain.NormalizeAddress(l.Seller)
	if l.IsClaimRight && !l.Sold {
		for _, other := range f.listings {
			if other.IsClaimRight && !other.Sold &&
				other.EventID == l.EventID && other.Seller == l.Seller {
				return domain.ErrDuplicateListing
			}
		}
	}
	f.listings[l.ID] = l
	return nil
}

func (f *fakeListingStore) GetByID(ctx context.Context, id string) (domain.ResaleListing, error) {
	l, ok := f.listings[id]
	if !ok {
		return domain.ResaleListing{}, domain.ErrNotFound
	}
	return l, nil
}

func (f *fakeListingStore) ActiveClaimRight(ctx context.Context, eventID uint64, seller string) (domain.ResaleListing, error) {
	seller = domain.NormalizeAddress(seller)
	for _, l := range f.listings {
		if l.IsClaimRight && !l.Sold && l.EventID == eventID && l.Seller == seller {
			return l, nil
		}
	}
	return domain.ResaleListing{}, domain.ErrNotFound
}

func (f *fakeListingStore) ListOpen(ctx context.Context, opts domain.ListOpts) ([]domain.ResaleListing, error) {
	var out []domain.ResaleListing
	for _, l := range f.listings {
		if !l.Sold {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

func (f *fakeListingStore) ListBySeller(ctx context.Context, seller string) ([]domain.ResaleListing, error) {
	seller = domain.NormalizeAddress(seller)
	var out []domain.ResaleListing
	for _, l := range f.listings {
		if l.Seller == seller {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeListingStore) MarkSold(ctx context.Context, id string, soldAt time.Time) error {
	l, ok := f.listings[id]
	if !ok || l.Sold {
		return domain.ErrNotFound
	}
	l.Sold = true
	l.SoldTimestamp = &soldAt
	f.listings[id] = l
	return nil
}

func (f *fakeListingStore) Delete(ctx context.Context, id string) error {
	if _, ok := f.listings[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.listings, id)
	return nil
}

func (f *fakeListingStore) DeleteAllUnsold(ctx context.Context) (int64, error) {
	var n int64
	for id, l := range f.listings {
		if !l.Sold {
			delete(f.listings, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeListingStore) ListSoldBefore(ctx context.Context, cutoff time.Time) ([]domain.ResaleListing, error) {
	var out []domain.ResaleListing
	for _, l := range f.listings {
		if l.Sold && l.SoldTimestamp != nil && l.SoldTimestamp.Before(cutoff) {
			out = append(out, l)
		}
	}
	return out, nil
}

type fakeClaimRightStore struct {
	rights []domain.ClaimRight
}

func newFakeClaimRightStore() *fakeClaimRightStore { return &fakeClaimRightStore{} }

func (f *fakeClaimRightStore) Add(ctx context.Context, r domain.ClaimRight) error {
	r.NewOwner = domain.NormalizeAddress(r.NewOwner)
	r.OriginalWinner = domain.NormalizeAddress(r.OriginalWinner)
	f.rights = append(f.rights, r)
	return nil
}

func (f *fakeClaimRightStore) ListByOwner(ctx context.Context, owner string) ([]domain.ClaimRight, error) {
	owner = domain.NormalizeAddress(owner)
	var out []domain.ClaimRight
	for _, r := range f.rights {
		if r.NewOwner == owner {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeClaimRightStore) ListByEvent(ctx context.Context, eventID uint64) ([]domain.ClaimRight, error) {
	var out []domain.ClaimRight
	for _, r := range f.rights {
		if r.EventID == eventID {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeTransferStore struct {
	transfers map[string]domain.PendingTransfer
}

func newFakeTransferStore() *fakeTransferStore {
	return &fakeTransferStore{transfers: map[string]domain.PendingTransfer{}}
}

func (f *fakeTransferStore) Create(ctx context.Context, t domain.PendingTransfer) error {
	if _, ok := f.transfers[t.ID]; ok {
		return domain.ErrAlreadyExists
	}
	t.Seller = domain.NormalizeAddress(t.Seller)
	t.Buyer = domain.NormalizeAddress(t.Buyer)
	f.transfers[t.ID] = t
	return nil
}

func (f *fakeTransferStore) GetByID(ctx context.Context, id string) (domain.PendingTransfer, error) {
	t, ok := f.transfers[id]
	if !ok {
		return domain.PendingTransfer{}, domain.ErrNotFound
	}
	return t, nil
}

func (f *fakeTransferStore) Complete(ctx context.Context, id string, buyerAddress string, at time.Time) error {
	t, ok := f.transfers[id]
	if !ok {
		return domain.ErrNotFound
	}
	if t.Completed {
		return domain.ErrAlreadyExists
	}
	t.Completed = true
	t.CompletedAt = &at
	t.BuyerAddress = domain.NormalizeAddress(buyerAddress)
	f.transfers[id] = t
	return nil
}

func (f *fakeTransferStore) FindOpen(ctx context.Context, eventID uint64, seller string) (domain.PendingTransfer, error) {
	seller = domain.NormalizeAddress(seller)
	for _, t := range f.transfers {
		if !t.Completed && t.EventID == eventID && t.Seller == seller {
			return t, nil
		}
	}
	return domain.PendingTransfer{}, domain.ErrNotFound
}

func (f *fakeTransferStore) ListIncompleteBySeller(ctx context.Context, seller string) ([]domain.PendingTransfer, error) {
	seller = domain.NormalizeAddress(seller)
	var out []domain.PendingTransfer
	for _, t := range f.transfers {
		if !t.Completed && t.Seller == seller {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (f *fakeTransferStore) ListStale(ctx context.Context, olderThan time.Time) ([]domain.PendingTransfer, error) {
	var out []domain.PendingTransfer
	for _, t := range f.transfers {
		if !t.Completed && t.Timestamp.Before(olderThan) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeTransferStore) DeleteStale(ctx context.Context, olderThan time.Time) (int64, error) {
	var n int64
	for id, t := range f.transfers {
		if !t.Completed && t.Timestamp.Before(olderThan) {
			delete(f.transfers, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeTransferStore) DeleteCompleted(ctx context.Context) (int64, error) {
	var n int64
	for id, t := range f.transfers {
		if t.Completed {
			delete(f.transfers, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeTransferStore) DeleteInvalid(ctx context.Context) (int64, error) {
	var n int64
	for id, t := range f.transfers {
		if !t.Valid() {
			delete(f.transfers, id)
			n++
		}
	}
	return n, nil
}

type fakeEventStore struct {
	events map[uint64]domain.EventMeta
}

func newFakeEventStore() *fakeEventStore { return &fakeEventStore{events: map[uint64]domain.EventMeta{}} }

func (f *fakeEventStore) Upsert(ctx context.Context, m domain.EventMeta) error {
	f.events[m.EventID] = m
	return nil
}

func (f *fakeEventStore) GetByID(ctx context.Context, eventID uint64) (domain.EventMeta, error) {
	m, ok := f.events[eventID]
	if !ok {
		return domain.EventMeta{}, domain.ErrNotFound
	}
	return m, nil
}

func (f *fakeEventStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.EventMeta, error) {
	var out []domain.EventMeta
	for _, m := range f.events {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EventID < out[j].EventID })
	return out, nil
}

func (f *fakeEventStore) Delete(ctx context.Context, eventID uint64) error {
	if _, ok := f.events[eventID]; !ok {
		return domain.ErrNotFound
	}
	delete(f.events, eventID)
	return nil
}

func testLogger(t *testing.T) *slog.Logger {
	t.Helper()
	return slog.New(slog.DiscardHandler)
}

// Compile-time interface checks for the fakes.
var (
	_ domain.SaleContract    = (*fakeContract)(nil)
	_ domain.SnapshotCache   = (*fakeSnapshotCache)(nil)
	_ domain.SaleCache       = (*fakeSaleCache)(nil)
	_ domain.ViewCache       = (*fakeViewCache)(nil)
	_ domain.SignalBus       = (*fakeBus)(nil)
	_ domain.SoldKeyStore    = (*fakeSoldKeyStore)(nil)
	_ domain.ReceiptStore    = (*fakeReceiptStore)(nil)
	_ domain.ListingStore    = (*fakeListingStore)(nil)
	_ domain.ClaimRightStore = (*fakeClaimRightStore)(nil)
	_ domain.TransferStore   = (*fakeTransferStore)(nil)
	_ domain.EventStore      = (*fakeEventStore)(nil)
)

type fakeLockManager struct {
	held     bool
	acquired int
	released int
}

func (f *fakeLockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	if f.held {
		return nil, domain.ErrLockHeld
	}
	f.acquired++
	return func() { f.released++ }, nil
}

type alert struct {
	event   string
	title   string
	message string
}

type fakeAlerter struct {
	alerts []alert
	err    error
}

func (f *fakeAlerter) Notify(ctx context.Context, event, title, message string) error {
	if f.err != nil {
		return f.err
	}
	f.alerts = append(f.alerts, alert{event: event, title: title, message: message})
	return nil
}
