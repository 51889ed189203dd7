package worker

import (
	"github.com/craigfelt/zerobitone-ticket-service/internal/service"
)

// StartNotificationWorker registers the event relay with the dispatcher.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}
