package repository

import "strings"

const (
	roomKeyPrefix      = "room:"
	messagesKeySuffix  = ":messages"
	roomKeyScanPattern = roomKeyPrefix + "*"
)

func roomKey(roomID string) string {
	return roomKeyPrefix + roomID
}

func messagesKey(roomID string) string {
	return roomKeyPrefix + roomID + messagesKeySuffix
}

func isMessagesKey(key string) bool {
	return strings.HasSuffix(key, messagesKeySuffix)
}
