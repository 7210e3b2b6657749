package bidi

// BroadcastToTopic sends msg to every subscriber of topic, dropping
// any connection whose mailbox is already closed from the topic's
// subscriber set. Returns the count of successful enqueues.
func (r *Registry) BroadcastToTopic(topic string, msg Message) int {
	sent := 0
	for _, id := range r.topics.Members(topic) {
		if r.SendToConnection(id, msg) {
			sent++
		} else {
			r.Unsubscribe(id, topic)
		}
	}
	return sent
}

// BroadcastToAuthenticated sends msg to every connection with an
// attached user. Returns the count of successful enqueues.
func (r *Registry) BroadcastToAuthenticated(msg Message) int {
	sent := 0
	for _, info := range r.ListAll() {
		user, ok := r.User(info.ID)
		if !ok || user == nil {
			continue
		}
		if r.SendToConnection(info.ID, msg) {
			sent++
		}
	}
	return sent
}

// BroadcastToPermission sends msg to every connection whose attached
// user holds permission. Returns the count of successful enqueues.
func (r *Registry) BroadcastToPermission(permission string, msg Message) int {
	sent := 0
	for _, info := range r.ListAll() {
		user, ok := r.User(info.ID)
		if !ok || user == nil || !user.HasPermission(permission) {
			continue
		}
		if r.SendToConnection(info.ID, msg) {
			sent++
		}
	}
	return sent
}
