package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	name  string
	err   error
	panic bool
	block bool

	mu   sync.Mutex
	sent []Message
}

func (f *fakeChannel) Name() string { return f.name }

func (f *fakeChannel) Send(ctx context.Context, msg Message) error {
	if f.panic {
		panic("boom")
	}
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	f.mu.Lock()
	f.sent = append(f.sent, msg)
	f.mu.Unlock()
	return f.err
}

func mustText(t *testing.T, src map[string]Template) TemplateSet {
	t.Helper()
	set, err := TextTemplates(src)
	require.NoError(t, err)
	return set
}

func TestDispatch_ChannelsAreIndependent(t *testing.T) {
	d := NewDispatcher(50 * time.Millisecond)
	ok := &fakeChannel{name: "ok"}
	failing := &fakeChannel{name: "failing", err: errors.New("smtp down")}
	panicking := &fakeChannel{name: "panicking", panic: true}
	slow := &fakeChannel{name: "slow", block: true}

	tpl := mustText(t, map[string]Template{EventSupplierApproved: {Body: "hi {{.company_name}}"}})
	for _, ch := range []*fakeChannel{ok, failing, panicking, slow} {
		d.Register(ch, tpl)
	}

	results := d.Dispatch(context.Background(), EventSupplierApproved, map[string]string{"company_name": "Acme"})
	require.Len(t, results, 4)

	assert.Equal(t, ChannelResult{Channel: "ok", Status: StatusSent}, results[0])
	assert.Equal(t, StatusFailed, results[1].Status)
	assert.Contains(t, results[1].Error, "smtp down")
	assert.Equal(t, StatusFailed, results[2].Status)
	assert.Contains(t, results[2].Error, "panicked")
	assert.Equal(t, StatusFailed, results[3].Status)
	assert.ErrorIs(t, results[3].Err, context.DeadlineExceeded)

	require.Len(t, ok.sent, 1)
	assert.Equal(t, "hi Acme", ok.sent[0].Body)
}

func TestDispatch_UnknownEventYieldsEmptyResult(t *testing.T) {
	d := NewDispatcher(time.Second)
	d.Register(&fakeChannel{name: "ok"}, mustText(t, map[string]Template{EventBuyerApproved: {Body: "x"}}))

	assert.Empty(t, d.Dispatch(context.Background(), "order_shipped", nil))
	assert.Empty(t, d.Channels("order_shipped"))
}

func TestDispatch_OnlyChannelsWithTemplates(t *testing.T) {
	d := NewDispatcher(time.Second)
	email := &fakeChannel{name: "email"}
	telegram := &fakeChannel{name: "telegram"}
	d.Register(email, mustText(t, map[string]Template{EventSupplierRejected: {Body: "no"}}))
	d.Register(telegram, mustText(t, map[string]Template{EventProductApproved: {Body: "yes"}}))

	results := d.Dispatch(context.Background(), EventProductApproved, nil)
	require.Len(t, results, 1)
	assert.Equal(t, "telegram", results[0].Channel)
	assert.Empty(t, email.sent)
	assert.Equal(t, []string{"telegram"}, d.Channels(EventProductApproved))
}

func TestDispatch_SkipChannels(t *testing.T) {
	d := NewDispatcher(time.Second)
	email := &fakeChannel{name: "email"}
	ws := &fakeChannel{name: "websocket"}
	tpl := mustText(t, map[string]Template{EventBuyerApproved: {Body: "x"}})
	d.Register(email, tpl)
	d.Register(ws, tpl)

	results := d.Dispatch(context.Background(), EventBuyerApproved, nil, SkipChannels("email"))
	require.Len(t, results, 2)
	assert.Equal(t, StatusSkipped, results[0].Status)
	assert.Equal(t, StatusSent, results[1].Status)
	assert.Empty(t, email.sent)
	assert.Len(t, ws.sent, 1)
}

func TestTemplates_RenderDefaults(t *testing.T) {
	set, err := HTMLTemplates(EmailTemplates)
	require.NoError(t, err)

	msg, err := set.Render(EventBuyerRejected, map[string]string{"company_name": "<Acme & Co>"})
	require.NoError(t, err)
	assert.Equal(t, "Buyer Application Status Update", msg.Subject)
	assert.Contains(t, msg.Body, "&lt;Acme &amp; Co&gt;")
	assert.Contains(t, msg.Body, "Not specified")

	msg, err = set.Render(EventSupplierRejected, map[string]string{"company_name": "Acme", "rejection_reason": "expired licence"})
	require.NoError(t, err)
	assert.Contains(t, msg.Body, "expired licence")

	assert.False(t, set.Has(EventProductApproved))

	tg, err := TextTemplates(TelegramTemplates)
	require.NoError(t, err)
	msg, err = tg.Render(EventProductApproved, map[string]string{"product_name": "Bolts", "price": "12.50", "min_order_quantity": "100"})
	require.NoError(t, err)
	assert.Contains(t, msg.Body, "Product: Bolts")
	assert.Contains(t, msg.Body, "MOQ: 100")

	dash, err := TextTemplates(DashboardTemplates)
	require.NoError(t, err)
	for _, e := range AllEvents {
		assert.True(t, dash.Has(e), e)
	}
}
