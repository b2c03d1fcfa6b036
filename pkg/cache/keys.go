package cache

import "fmt"

// Key layout:
// - roomKey(docID):             candidate member set (Set<sessionID>)
// - memberKey(docID,sessionID): liveness key (String "1" with TTL)
// - namesKey(docID):            sessionID -> display name (Hash)

const (
	keyRoomFmt   = "presence:room:%s"
	keyMemberFmt = "presence:member:%s:%s"
	keyNamesFmt  = "presence:room:names:%s"
)

func roomKey(docID string) string { return fmt.Sprintf(keyRoomFmt, docID) }

func memberKey(docID, sessionID string) string {
	return fmt.Sprintf(keyMemberFmt, docID, sessionID)
}

func namesKey(docID string) string { return fmt.Sprintf(keyNamesFmt, docID) }
