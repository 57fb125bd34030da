package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"voicetrust/backend/internal/notification/domain"
	"voicetrust/backend/internal/notification/push"
)

type fakeSMS struct {
	phone, body string
	err         error
}

func (f *fakeSMS) Send(_ context.Context, phone, body string) error {
	f.phone, f.body = phone, body
	return f.err
}

type fakePush struct {
	token string
	n     push.Notification
	err   error
}

func (f *fakePush) Send(_ context.Context, token string, n push.Notification) error {
	f.token, f.n = token, n
	return f.err
}

type fakeShipper struct {
	records []DeliveryRecord
	labels  []map[string]string
}

func (f *fakeShipper) PushJSON(_ context.Context, _ time.Time, v any, labels map[string]string) error {
	f.records = append(f.records, v.(DeliveryRecord))
	f.labels = append(f.labels, labels)
	return nil
}

func encode(t *testing.T, m domain.Message) []byte {
	t.Helper()
	b, err := json.Marshal(m)
	require.NoError(t, err)
	return b
}

func TestDeliver_RoutesPush(t *testing.T) {
	p, s, rec := &fakePush{}, &fakeSMS{}, &fakeShipper{}
	d := NewDeliverer(p, s, rec, zaptest.NewLogger(t), nil)

	raw := encode(t, domain.Message{ID: "m1", Channel: domain.ChannelPush, Kind: domain.KindValidatorRequest,
		Recipient: "device-1", Body: "Validation request", DeepLink: "voicetrust://validate/t1", TicketID: "t1"})
	require.NoError(t, d.Deliver(context.Background(), raw))

	assert.Equal(t, "device-1", p.token)
	assert.Equal(t, "voicetrust://validate/t1", p.n.DeepLink)
	assert.Empty(t, s.phone)
	require.Len(t, rec.records, 1)
	assert.Equal(t, resultDelivered, rec.records[0].Result)
	assert.Equal(t, "t1", rec.records[0].TicketID)
	assert.Equal(t, "push", rec.labels[0]["channel"])
}

func TestDeliver_RoutesSMSAndMasksRecipient(t *testing.T) {
	s, rec := &fakeSMS{}, &fakeShipper{}
	d := NewDeliverer(nil, s, rec, zaptest.NewLogger(t), nil)

	raw := encode(t, domain.Message{ID: "m2", Channel: domain.ChannelSMS, Recipient: "+2250701020304", Body: "Bonjour"})
	require.NoError(t, d.Deliver(context.Background(), raw))

	assert.Equal(t, "+2250701020304", s.phone)
	assert.Equal(t, "Bonjour", s.body)
	require.Len(t, rec.records, 1)
	assert.Equal(t, "**********0304", rec.records[0].Recipient)
}

func TestDeliver_FailureIsReportedAndShipped(t *testing.T) {
	s, rec := &fakeSMS{err: errors.New("gateway down")}, &fakeShipper{}
	d := NewDeliverer(nil, s, rec, zaptest.NewLogger(t), nil)

	err := d.Deliver(context.Background(), encode(t, domain.Message{ID: "m3", Channel: domain.ChannelSMS, Recipient: "+2250701020304"}))
	require.Error(t, err)
	require.Len(t, rec.records, 1)
	assert.Equal(t, resultFailed, rec.records[0].Result)
	assert.Contains(t, rec.records[0].Error, "gateway down")
}

func TestDeliver_MissingSenderSkips(t *testing.T) {
	rec := &fakeShipper{}
	d := NewDeliverer(nil, nil, rec, zaptest.NewLogger(t), nil)

	require.NoError(t, d.Deliver(context.Background(), encode(t, domain.Message{ID: "m4", Channel: domain.ChannelPush, Recipient: "d"})))
	require.Len(t, rec.records, 1)
	assert.Equal(t, resultSkipped, rec.records[0].Result)
}

func TestDeliver_UnknownChannelFails(t *testing.T) {
	d := NewDeliverer(&fakePush{}, &fakeSMS{}, nil, zaptest.NewLogger(t), nil)
	assert.Error(t, d.Deliver(context.Background(), encode(t, domain.Message{ID: "m5", Channel: "fax"})))
}

func TestDeliver_DropsPoisonMessage(t *testing.T) {
	rec := &fakeShipper{}
	d := NewDeliverer(&fakePush{}, &fakeSMS{}, rec, zaptest.NewLogger(t), nil)
	assert.NoError(t, d.Deliver(context.Background(), []byte("{not json")))
	assert.Empty(t, rec.records)
}
