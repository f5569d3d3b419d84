package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	logx "pollbot/pkg/logx"
)

type memBackend struct {
	mu      sync.Mutex
	recs    []Record
	readErr error
	writes  int
}

func (b *memBackend) ReadSchedules(context.Context) ([]Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.readErr != nil {
		return nil, b.readErr
	}
	out := make([]Record, 0, len(b.recs))
	for _, r := range b.recs {
		out = append(out, r.Clone())
	}
	return out, nil
}

func (b *memBackend) WriteSchedules(_ context.Context, recs []Record) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.recs = append([]Record(nil), recs...)
	b.readErr = nil
	b.writes++
	return nil
}

func sample(send Weekday, pollDay, title string) Record {
	return Record{
		ID:        DeriveID(send, pollDay),
		SendDay:   send,
		PollDay:   pollDay,
		Hour:      18,
		Minute:    0,
		PollTitle: title,
		Options:   []string{"Да", "Нет", "Резерв"},
	}
}

func TestStoreReplaceAllRoundTrip(t *testing.T) {
	ctx := context.Background()
	st := NewStore(&memBackend{}, logx.Nop())

	rec := sample(Fri, "суббота", "Сквош в субботу?")
	require.NoError(t, st.ReplaceAll(ctx, rec.ID, &rec))

	got := st.Load(ctx)
	require.Len(t, got, 1)
	require.Equal(t, rec, got[0])

	require.NoError(t, st.ReplaceAll(ctx, rec.ID, nil))
	_, ok := st.Get(ctx, rec.ID)
	require.False(t, ok)
	require.Empty(t, st.Load(ctx))
}

func TestStoreOverwriteSameDayPair(t *testing.T) {
	ctx := context.Background()
	st := NewStore(&memBackend{}, logx.Nop())

	first := sample(Tue, "среда", "first")
	second := sample(Tue, "среда", "second")
	other := sample(Fri, "суббота", "")
	require.NoError(t, st.ReplaceAll(ctx, other.ID, &other))
	require.NoError(t, st.ReplaceAll(ctx, first.ID, &first))
	require.NoError(t, st.ReplaceAll(ctx, second.ID, &second))

	got := st.Load(ctx)
	require.Len(t, got, 2)
	r, ok := st.Get(ctx, first.ID)
	require.True(t, ok)
	require.Equal(t, "second", r.PollTitle)
}

func TestStoreRunsRebuildAfterWrite(t *testing.T) {
	ctx := context.Background()
	be := &memBackend{}
	st := NewStore(be, logx.Nop())

	var seen []int
	st.OnChange(func(ctx context.Context) error {
		// The hook must observe the freshly written collection.
		seen = append(seen, len(st.Load(ctx)))
		return nil
	})

	a := sample(Mon, "вторник", "")
	b := sample(Wed, "четверг", "")
	require.NoError(t, st.ReplaceAll(ctx, a.ID, &a))
	require.NoError(t, st.ReplaceAll(ctx, b.ID, &b))
	require.NoError(t, st.ReplaceAll(ctx, a.ID, nil))
	require.Equal(t, []int{1, 2, 1}, seen)
	require.Equal(t, 3, be.writes)
}

func TestStoreRejectsInvalidRecord(t *testing.T) {
	ctx := context.Background()
	be := &memBackend{}
	st := NewStore(be, logx.Nop())

	rec := sample(Fri, "суббота", "")
	rec.Options = []string{"Да"}
	err := st.ReplaceAll(ctx, rec.ID, &rec)
	require.ErrorIs(t, err, ErrInvalidRecord)
	require.Zero(t, be.writes)

	rec = sample(Fri, "суббота", "")
	err = st.ReplaceAll(ctx, "mon_x", &rec)
	require.ErrorIs(t, err, ErrInvalidRecord)
}

func TestStoreCorruptBackendLoadsEmpty(t *testing.T) {
	ctx := context.Background()
	be := &memBackend{readErr: fmt.Errorf("%w: invalid character 'x'", ErrCorrupt)}
	st := NewStore(be, logx.Nop())

	require.Empty(t, st.Load(ctx))

	// The next mutation replaces the unreadable state.
	rec := sample(Fri, "суббота", "")
	require.NoError(t, st.ReplaceAll(ctx, rec.ID, &rec))
	require.Len(t, st.Load(ctx), 1)
}

func TestStoreReadFailureAbortsMutation(t *testing.T) {
	ctx := context.Background()
	be := &memBackend{recs: []Record{sample(Mon, "вторник", "")}}
	st := NewStore(be, logx.Nop())

	denied := errors.New("permission denied")
	be.readErr = denied
	require.Empty(t, st.Load(ctx))

	rec := sample(Fri, "суббота", "")
	err := st.ReplaceAll(ctx, rec.ID, &rec)
	require.ErrorIs(t, err, denied)
	require.Zero(t, be.writes)

	be.readErr = nil
	got := st.Load(ctx)
	require.Len(t, got, 1)
	require.Equal(t, "mon_вторник", got[0].ID)
}

func TestStoreSkipsInvalidAndDuplicateRows(t *testing.T) {
	ctx := context.Background()
	good := sample(Fri, "суббота", "old")
	dup := sample(Fri, "суббота", "new")
	broken := sample(Mon, "вторник", "")
	broken.Hour = 42
	st := NewStore(&memBackend{recs: []Record{good, broken, dup}}, logx.Nop())

	got := st.Load(ctx)
	require.Len(t, got, 1)
	require.Equal(t, "new", got[0].PollTitle)
}
