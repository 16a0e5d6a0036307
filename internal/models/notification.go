package models

import "encoding/json"

// SystemNotification is a department announcement.
type SystemNotification struct {
	ID                string `json:"id"`
	SenderID          string `json:"senderId"`
	SenderName        string `json:"senderName"`
	Role              string `json:"role"`
	Content           string `json:"content"`
	Date              string `json:"date"`
	ExecutionTime     string `json:"executionTime,omitempty"`
	SendEmailReminder bool   `json:"sendEmailReminder"`
	IsImportant       bool   `json:"isImportant"`
	ReminderSentAt    string `json:"reminderSentAt,omitempty"`
}

func (n *SystemNotification) UnmarshalJSON(b []byte) error {
	type plain SystemNotification
	aux := struct {
		*plain
		ID                FlexString `json:"id"`
		SenderID          FlexString `json:"senderId"`
		SendEmailReminder FlexBool   `json:"sendEmailReminder"`
		IsImportant       FlexBool   `json:"isImportant"`
	}{plain: (*plain)(n)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	n.ID = string(aux.ID)
	n.SenderID = string(aux.SenderID)
	n.SendEmailReminder = bool(aux.SendEmailReminder)
	n.IsImportant = bool(aux.IsImportant)
	return nil
}
