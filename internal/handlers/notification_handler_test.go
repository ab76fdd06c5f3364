package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/saeid-a/bookingchat/internal/models"
	"github.com/saeid-a/bookingchat/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFeed struct {
	notifications []models.Notification
	saved         []models.Notification
	unread        int
	savedCount    int
	err           error
	lastUserID    int64
	lastLimit     int
}

func (s *stubFeed) ListForUser(_ context.Context, userID int64, limit int) ([]models.Notification, error) {
	s.lastUserID = userID
	s.lastLimit = limit
	return s.notifications, s.err
}

func (s *stubFeed) ListSaved(_ context.Context, userID int64, limit int) ([]models.Notification, error) {
	s.lastUserID = userID
	s.lastLimit = limit
	return s.saved, s.err
}

func (s *stubFeed) UnreadCount(_ context.Context, userID int64) (int, error) {
	s.lastUserID = userID
	return s.unread, s.err
}

func (s *stubFeed) SavedCount(_ context.Context, userID int64) (int, error) {
	s.lastUserID = userID
	return s.savedCount, s.err
}

type stateCall struct {
	op     string
	userID int64
	typ    models.NotificationType
	id     int64
}

type stubTracker struct {
	calls    []stateCall
	err      error
	statuses []models.NotificationStatus
	lastIDs  []int64
}

func (s *stubTracker) record(op string, userID int64, typ models.NotificationType, id int64) error {
	s.calls = append(s.calls, stateCall{op: op, userID: userID, typ: typ, id: id})
	return s.err
}

func (s *stubTracker) MarkRead(_ context.Context, userID int64, typ models.NotificationType, id int64) error {
	return s.record("read", userID, typ, id)
}

func (s *stubTracker) MarkUnread(_ context.Context, userID int64, typ models.NotificationType, id int64) error {
	return s.record("unread", userID, typ, id)
}

func (s *stubTracker) Save(_ context.Context, userID int64, typ models.NotificationType, id int64) error {
	return s.record("save", userID, typ, id)
}

func (s *stubTracker) Unsave(_ context.Context, userID int64, typ models.NotificationType, id int64) error {
	return s.record("unsave", userID, typ, id)
}

func (s *stubTracker) Delete(_ context.Context, userID int64, typ models.NotificationType, id int64) error {
	return s.record("delete", userID, typ, id)
}

func (s *stubTracker) StatusBatch(_ context.Context, userID int64, typ models.NotificationType, ids []int64) ([]models.NotificationStatus, error) {
	s.lastIDs = ids
	_ = s.record("status", userID, typ, 0)
	return s.statuses, s.err
}

func newNotificationTestApp(feed *stubFeed, tracker *stubTracker) *fiber.App {
	handler := NewNotificationHandler(feed, tracker)

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("role", models.UserTypeClient)
		c.Locals("user_id", "7")
		return c.Next()
	})
	app.Get("/notifications", handler.List)
	app.Get("/notifications/unread-count", handler.UnreadCount)
	app.Get("/notifications/saved", handler.ListSaved)
	app.Get("/notifications/saved-count", handler.SavedCount)
	app.Post("/notifications/read", handler.MarkRead)
	app.Post("/notifications/unread", handler.MarkUnread)
	app.Post("/notifications/save", handler.Save)
	app.Delete("/notifications/save", handler.Unsave)
	app.Post("/notifications/status", handler.Status)
	app.Delete("/notifications/:type/:id", handler.Delete)
	return app
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestListNotifications(t *testing.T) {
	bookingID := int64(42)
	feed := &stubFeed{
		notifications: []models.Notification{
			{ID: 1, Type: models.NotificationBookingConfirmed, RecipientID: 7, Title: "Booking confirmed", Body: "See you", BookingID: &bookingID, CreatedAt: time.Now().UTC()},
		},
	}
	app := newNotificationTestApp(feed, &stubTracker{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/notifications?limit=5", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(7), feed.lastUserID)
	assert.Equal(t, 5, feed.lastLimit)

	var body struct {
		Notifications []models.Notification `json:"notifications"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Notifications, 1)
	assert.Equal(t, "See you", body.Notifications[0].Body)
}

func TestListNotificationsDefaultsAndBadLimit(t *testing.T) {
	feed := &stubFeed{}
	app := newNotificationTestApp(feed, &stubTracker{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/notifications/saved", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Zero(t, feed.lastLimit)

	var body struct {
		Notifications []models.Notification `json:"notifications"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.NotNil(t, body.Notifications)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/notifications?limit=abc", nil))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestNotificationCounts(t *testing.T) {
	app := newNotificationTestApp(&stubFeed{unread: 3, savedCount: 1}, &stubTracker{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/notifications/unread-count", nil))
	require.NoError(t, err)
	var unread struct {
		UnreadCount int `json:"unread_count"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&unread))
	resp.Body.Close()
	assert.Equal(t, 3, unread.UnreadCount)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/notifications/saved-count", nil))
	require.NoError(t, err)
	var saved struct {
		SavedCount int `json:"saved_count"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&saved))
	resp.Body.Close()
	assert.Equal(t, 1, saved.SavedCount)
}

func TestNotificationStateRoutes(t *testing.T) {
	tracker := &stubTracker{}
	app := newNotificationTestApp(&stubFeed{}, tracker)
	payload := `{"type":"booking_confirmed","id":5}`

	for _, req := range []*http.Request{
		jsonRequest(http.MethodPost, "/notifications/read", payload),
		jsonRequest(http.MethodPost, "/notifications/unread", payload),
		jsonRequest(http.MethodPost, "/notifications/save", payload),
		jsonRequest(http.MethodDelete, "/notifications/save", payload),
		httptest.NewRequest(http.MethodDelete, "/notifications/booking_confirmed/5", nil),
	} {
		resp, err := app.Test(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNoContent, resp.StatusCode, req.Method+" "+req.URL.Path)
	}

	ops := make([]string, 0, len(tracker.calls))
	for _, call := range tracker.calls {
		ops = append(ops, call.op)
		assert.Equal(t, int64(7), call.userID)
		assert.Equal(t, models.NotificationBookingConfirmed, call.typ)
		assert.Equal(t, int64(5), call.id)
	}
	assert.Equal(t, []string{"read", "unread", "save", "unsave", "delete"}, ops)
}

func TestNotificationStateValidation(t *testing.T) {
	cases := []struct {
		name   string
		req    *http.Request
		err    error
		status int
	}{
		{name: "unknown type", req: jsonRequest(http.MethodPost, "/notifications/read", `{"type":"party","id":5}`), status: http.StatusBadRequest},
		{name: "missing id", req: jsonRequest(http.MethodPost, "/notifications/save", `{"type":"chat_message"}`), status: http.StatusBadRequest},
		{name: "not owned", req: jsonRequest(http.MethodPost, "/notifications/save", `{"type":"chat_message","id":8}`), err: services.ErrNotFound, status: http.StatusNotFound},
		{name: "bad delete type", req: httptest.NewRequest(http.MethodDelete, "/notifications/party/5", nil), status: http.StatusBadRequest},
		{name: "bad delete id", req: httptest.NewRequest(http.MethodDelete, "/notifications/chat_message/x", nil), status: http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := newNotificationTestApp(&stubFeed{}, &stubTracker{err: tc.err})
			resp, err := app.Test(tc.req)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}
}

func TestNotificationStatusBatch(t *testing.T) {
	readAt := time.Now().UTC()
	tracker := &stubTracker{
		statuses: []models.NotificationStatus{
			{Type: models.NotificationChatMessage, ID: 1, IsRead: true, ReadAt: &readAt},
			{Type: models.NotificationChatMessage, ID: 2},
		},
	}
	app := newNotificationTestApp(&stubFeed{}, tracker)

	resp, err := app.Test(jsonRequest(http.MethodPost, "/notifications/status", `{"type":"chat_message","ids":[1,2]}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []int64{1, 2}, tracker.lastIDs)

	var body struct {
		Statuses []models.NotificationStatus `json:"statuses"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Statuses, 2)
	assert.True(t, body.Statuses[0].IsRead)

	resp, err = app.Test(jsonRequest(http.MethodPost, "/notifications/status", `{"type":"chat_message","ids":[0]}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
