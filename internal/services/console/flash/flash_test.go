package flash

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/louisbranch/groupbuy-console/internal/services/console/apiclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteThenReadAndClear(t *testing.T) {
	rr := httptest.NewRecorder()
	Write(rr, Success("Password updated"))
	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	out := httptest.NewRecorder()
	notice, ok := ReadAndClear(out, req)
	require.True(t, ok)
	assert.Equal(t, Notice{Kind: KindSuccess, Text: "Password updated"}, notice)

	cleared := out.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.Equal(t, -1, cleared[0].MaxAge)
}

func TestWriteSkipsInvalidNotices(t *testing.T) {
	for _, notice := range []Notice{{Kind: KindInfo, Text: " "}, {Kind: "shout", Text: "hi"}} {
		rr := httptest.NewRecorder()
		Write(rr, notice)
		assert.Empty(t, rr.Result().Cookies())
	}
}

func TestReadRejectsGarbage(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "!!!"})
	_, ok := ReadAndClear(httptest.NewRecorder(), req)
	assert.False(t, ok)

	_, ok = ReadAndClear(nil, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.False(t, ok)
}

func TestNotifierFeedsRequestCollector(t *testing.T) {
	var got []Notice
	h := Collect(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		Notifier{}.Notify(r.Context(), apiclient.Notice{Kind: apiclient.KindForbidden, Message: "No access"})
		Notifier{}.Notify(r.Context(), apiclient.Notice{Kind: apiclient.KindBadRequest, Message: "name - required"})
		got = CollectorFrom(r.Context()).Drain()
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []Notice{
		{Kind: KindError, Text: "No access"},
		{Kind: KindWarning, Text: "name - required"},
	}, got)
}

func TestNotifierFallsBackOutsideRequests(t *testing.T) {
	var fallback []apiclient.Notice
	n := Notifier{Fallback: func(notice apiclient.Notice) { fallback = append(fallback, notice) }}
	n.Notify(context.Background(), apiclient.Notice{Kind: apiclient.KindTimeout, Message: "slow"})
	require.Len(t, fallback, 1)
	assert.Equal(t, "slow", fallback[0].Message)

	Notifier{}.Notify(context.Background(), apiclient.Notice{Message: "dropped"})
}

func TestCollectorDrainEmpties(t *testing.T) {
	c := &Collector{}
	c.Add(Error("boom"))
	assert.Len(t, c.Drain(), 1)
	assert.Empty(t, c.Drain())

	var nilCollector *Collector
	nilCollector.Add(Error("ignored"))
	assert.Nil(t, nilCollector.Drain())
}
