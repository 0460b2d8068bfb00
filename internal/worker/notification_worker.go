package worker

import (
	"github.com/spec-kit/visitor-queue/internal/service"
)

// StartEventHandlers subscribes the notification and summary services to
// ticket events. Either may be nil.
func StartEventHandlers(notifications *service.NotificationService, summaries *service.SummaryService) {
	if notifications != nil {
		notifications.RegisterHandlers()
	}
	if summaries != nil {
		summaries.RegisterHandlers()
	}
}
