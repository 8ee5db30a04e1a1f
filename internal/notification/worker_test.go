package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"hostel-portal-backend/internal/model"
)

// mockSender is a mock implementation of the NotificationSender interface.
type mockSender struct {
	SendFunc func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// Send calls the mock SendFunc.
func (m *mockSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return m.SendFunc(payload, sub, options)
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:notif_" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&model.Room{}, &model.Allocation{}, &model.PushSubscription{}))
	return db
}

func TestWorkerPool_Dispatch(t *testing.T) {
	db := newTestDB(t)
	wp := NewWorkerPool(1, db, &webpush.Options{})

	wp.Dispatch("alloc-123")

	select {
	case job := <-wp.jobs:
		assert.Equal(t, "alloc-123", job)
	case <-time.After(1 * time.Second):
		t.Fatal("timed out waiting for job to be dispatched")
	}
}

func TestWorkerPool_NotifiesDecision(t *testing.T) {
	db := newTestDB(t)
	wp := NewWorkerPool(1, db, &webpush.Options{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wp.Start(ctx)

	room := model.Room{ID: 7, Hostel: "North Wing", Block: "A", Number: "101", Capacity: 2, Type: model.RoomTypeDouble, Status: model.RoomAvailable}
	require.NoError(t, db.Create(&room).Error)
	alloc := model.Allocation{
		ID: "alloc-1", StudentID: "S1", Hostel: "North Wing", Block: "A",
		RoomID: room.ID, LockedRoomID: room.ID,
		RequestType: model.RequestInitial, Status: model.AllocationApproved,
	}
	require.NoError(t, db.Create(&alloc).Error)
	require.NoError(t, db.Create(&model.PushSubscription{
		Endpoint: "https://example.com/push", P256DH: "k", Auth: "a", StudentID: "S1",
	}).Error)

	var wg sync.WaitGroup
	wg.Add(1)
	wp.sender = &mockSender{
		SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
			defer wg.Done()
			assert.Equal(t, "https://example.com/push", sub.Endpoint)

			var body decisionPayload
			require.NoError(t, json.Unmarshal(payload, &body))
			assert.Equal(t, "alloc-1", body.AllocationID)
			assert.Equal(t, "approved", body.Status)
			assert.Equal(t, "A-101", body.Room)

			return &http.Response{
				StatusCode: http.StatusCreated,
				Body:       io.NopCloser(bytes.NewBufferString("")),
			}, nil
		},
	}

	wp.Dispatch("alloc-1")
	wg.Wait()
}

func TestWorkerPool_DeletesExpiredSubscription(t *testing.T) {
	db := newTestDB(t)
	wp := NewWorkerPool(1, db, &webpush.Options{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wp.Start(ctx)

	alloc := model.Allocation{
		ID: "alloc-2", StudentID: "S2", RoomID: 1, LockedRoomID: 1,
		RequestType: model.RequestInitial, Status: model.AllocationRejected,
	}
	require.NoError(t, db.Create(&alloc).Error)
	require.NoError(t, db.Create(&model.PushSubscription{
		Endpoint: "https://example.com/expired", P256DH: "k", Auth: "a", StudentID: "S2",
	}).Error)

	var wg sync.WaitGroup
	wg.Add(1)
	wp.sender = &mockSender{
		SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
			defer wg.Done()
			return &http.Response{
				StatusCode: http.StatusGone,
				Body:       io.NopCloser(bytes.NewBufferString("")),
			}, nil
		},
	}

	wp.Dispatch("alloc-2")
	wg.Wait()

	// The 410 response prunes the subscription. Deletion happens after
	// the send returns, so poll briefly.
	assert.Eventually(t, func() bool {
		var count int64
		db.Model(&model.PushSubscription{}).Where("student_id = ?", "S2").Count(&count)
		return count == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWorkerPool_SkipsPendingAllocations(t *testing.T) {
	db := newTestDB(t)
	wp := NewWorkerPool(1, db, &webpush.Options{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wp.Start(ctx)

	alloc := model.Allocation{
		ID: "alloc-3", StudentID: "S3", RoomID: 1, LockedRoomID: 1,
		RequestType: model.RequestInitial, Status: model.AllocationPending,
	}
	require.NoError(t, db.Create(&alloc).Error)
	require.NoError(t, db.Create(&model.PushSubscription{
		Endpoint: "https://example.com/pending", P256DH: "k", Auth: "a", StudentID: "S3",
	}).Error)

	sent := false
	wp.sender = &mockSender{
		SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
			sent = true
			return &http.Response{StatusCode: http.StatusCreated, Body: io.NopCloser(bytes.NewBufferString(""))}, nil
		},
	}

	wp.Dispatch("alloc-3")
	time.Sleep(100 * time.Millisecond)
	assert.False(t, sent, "pending allocations must not trigger notifications")
}
