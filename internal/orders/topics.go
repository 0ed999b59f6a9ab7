package orders

const (
	TopicUserNotifications  = "notify.user"
	TopicStaffNotifications = "notify.staff"
)

// Partition key = channel, supaya urutan event per channel terjaga.
func PartitionKey(channel string) []byte { return []byte(channel) }
