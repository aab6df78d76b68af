// Package realtime carries events from domain writes to live client
// connections: channel naming, the event envelope, the bus client and the
// after-commit publisher.
package realtime

import "fmt"

// Channel patterns every process subscribes to on the bus. A single publish
// reaches all processes; each process filters against its own local registry.
var ChannelPatterns = []string{"section:*", "post:*", "user:*"}

func SectionChannel(sectionID string) string {
	return fmt.Sprintf("section:%s", sectionID)
}

func PostChannel(postID string) string {
	return fmt.Sprintf("post:%s", postID)
}

func UserMentionsChannel(userID string) string {
	return fmt.Sprintf("user:%s:mentions", userID)
}

func UserNotificationsChannel(userID string) string {
	return fmt.Sprintf("user:%s:notifications", userID)
}
