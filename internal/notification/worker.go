package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"hostel-portal-backend/internal/model"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// WorkerPool manages a pool of workers delivering allocation-decision
// notifications. Delivery is fire-and-forget: failures are logged and
// never surface on the decision path.
type WorkerPool struct {
	size    int
	jobs    chan string
	db      *gorm.DB
	webpush *webpush.Options
	sender  NotificationSender
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan string, size),
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

// worker is the actual worker goroutine.
func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("Worker %d started", id)
	for {
		select {
		case allocationID := <-wp.jobs:
			log.Printf("Worker %d processing allocation %s", id, allocationID)
			wp.notifyDecision(ctx, allocationID)
		case <-ctx.Done():
			log.Printf("Worker %d shutting down", id)
			return
		}
	}
}

// Dispatch sends a decided allocation id to the worker pool.
func (wp *WorkerPool) Dispatch(allocationID string) {
	wp.jobs <- allocationID
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan string {
	return wp.jobs
}

// decisionPayload is the push message body sent to the student.
type decisionPayload struct {
	AllocationID string `json:"allocationId"`
	Status       string `json:"status"`
	Room         string `json:"room"`
	Message      string `json:"message"`
}

// notifyDecision fetches the student's subscriptions and sends them the
// outcome of their allocation request.
func (wp *WorkerPool) notifyDecision(ctx context.Context, allocationID string) {
	var alloc model.Allocation
	if err := wp.db.WithContext(ctx).First(&alloc, "id = ?", allocationID).Error; err != nil {
		log.Printf("Error fetching allocation %s: %v", allocationID, err)
		return
	}
	if !alloc.Terminal() {
		return
	}

	var subscriptions []model.PushSubscription
	if err := wp.db.WithContext(ctx).
		Where("student_id = ?", alloc.StudentID).
		Find(&subscriptions).Error; err != nil {
		log.Printf("Error fetching subscriptions for student %s: %v", alloc.StudentID, err)
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	roomLabel := fmt.Sprintf("%s %s", alloc.Block, alloc.Hostel)
	var room model.Room
	if err := wp.db.WithContext(ctx).First(&room, alloc.RoomID).Error; err == nil {
		roomLabel = fmt.Sprintf("%s-%s", room.Block, room.Number)
	}

	payload, err := json.Marshal(decisionPayload{
		AllocationID: alloc.ID,
		Status:       string(alloc.Status),
		Room:         roomLabel,
		Message:      fmt.Sprintf("Your room request for %s was %s", roomLabel, alloc.Status),
	})
	if err != nil {
		log.Printf("Error encoding payload for allocation %s: %v", allocationID, err)
		return
	}

	log.Printf("Sending %d notifications for allocation %s", len(subscriptions), allocationID)
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, payload)
	}
}

// sendNotification sends a single web push notification.
func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		log.Printf("Error sending notification to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone {
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		if err := wp.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}
