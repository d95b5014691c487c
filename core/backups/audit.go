package backups

import (
	"context"

	"complaintdesk/core/store"
)

const (
	AuditExport           = "backups.export"
	AuditImport           = "backups.import"
	AuditScheduledFailed  = "backups.auto.failed"
	AuditRetentionDeleted = "backups.retention.deleted"
)

func Log(audits store.AuditStore, ctx context.Context, username, action, result, details string) {
	if audits == nil {
		return
	}
	payload := "result=" + result
	if details != "" {
		payload = payload + " " + details
	}
	_ = audits.Log(ctx, username, action, payload)
}
