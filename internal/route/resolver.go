// Package route maps an incoming source chat to its webhook targets.
package route

import "tgrelay/internal/domain"

// Reason explains why resolution produced no route.
type Reason string

const (
	// ReasonMatched means a route was found and the sender is not ignored.
	ReasonMatched Reason = "matched"
	// ReasonNoRoute means no exact or wildcard route exists for the chat.
	ReasonNoRoute Reason = "no_route"
	// ReasonIgnored means the sender is on the route's ignore list.
	ReasonIgnored Reason = "ignored"
)

// Resolve returns the route for a chat, preferring an exact chat-id match
// over the wildcard catch-all. A nil route with ReasonNoRoute or
// ReasonIgnored means the event is dropped; neither is an error.
func Resolve(chatID int64, senderHandle string, routes []domain.Route) (*domain.Route, Reason) {
	var match *domain.Route
	for i := range routes {
		r := &routes[i]
		if r.Wildcard {
			if match == nil {
				match = r
			}
			continue
		}
		if r.ChatID == chatID {
			match = r
			break
		}
	}
	if match == nil {
		return nil, ReasonNoRoute
	}
	if match.Ignores(senderHandle) {
		return nil, ReasonIgnored
	}
	return match, ReasonMatched
}
