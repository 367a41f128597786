// Package reaction holds the per-message reaction aggregate merge functions.
//
// Every function is pure: it takes the previous aggregate and returns a new
// one, never mutating its input. Optimistic and authoritative writes both go
// through these functions, so a user appears at most once per emoji no
// matter which side wrote last.
package reaction

import (
	"sort"

	"chat-sync/internal/domain/message"
)

// Add records userID under emoji. It reports false when the user was already
// present, in which case the returned aggregate equals prev.
func Add(prev message.Reactions, emoji, userID, self string) (message.Reactions, bool) {
	if emoji == "" || userID == "" {
		return prev, false
	}
	if Has(prev, emoji, userID) {
		return prev, false
	}
	next := prev.Clone()
	i := next.Find(emoji)
	if i < 0 {
		next = append(next, message.Reaction{Emoji: emoji})
		i = len(next) - 1
	}
	next[i].Users = insertSorted(next[i].Users, userID)
	next[i].Count++
	if next[i].Count < len(next[i].Users) {
		next[i].Count = len(next[i].Users)
	}
	return tag(next, self), true
}

// Remove drops userID from emoji and deletes the bucket once it is empty.
func Remove(prev message.Reactions, emoji, userID, self string) (message.Reactions, bool) {
	if !Has(prev, emoji, userID) {
		return prev, false
	}
	next := prev.Clone()
	i := next.Find(emoji)
	next[i].Users = removeSorted(next[i].Users, userID)
	next[i].Count--
	if next[i].Count <= 0 || (next[i].Count < len(next[i].Users)) {
		next[i].Count = len(next[i].Users)
	}
	if next[i].Count == 0 {
		next = append(next[:i], next[i+1:]...)
	}
	return tag(next, self), true
}

// Replace normalizes an authoritative snapshot: duplicate users collapse,
// duplicate emoji buckets merge, empty buckets disappear and Mine is derived
// from self.
func Replace(snapshot message.Reactions, self string) message.Reactions {
	var next message.Reactions
	for _, b := range snapshot {
		if b.Emoji == "" {
			continue
		}
		i := next.Find(b.Emoji)
		if i < 0 {
			next = append(next, message.Reaction{Emoji: b.Emoji})
			i = len(next) - 1
		}
		for _, u := range b.Users {
			if u != "" {
				next[i].Users = insertSorted(next[i].Users, u)
			}
		}
		if b.Count > next[i].Count {
			next[i].Count = b.Count
		}
		if next[i].Count < len(next[i].Users) {
			next[i].Count = len(next[i].Users)
		}
	}
	out := next[:0]
	for _, b := range next {
		if b.Count > 0 {
			out = append(out, b)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return tag(out, self)
}

// Has reports whether userID is among the users of emoji.
func Has(r message.Reactions, emoji, userID string) bool {
	i := r.Find(emoji)
	if i < 0 {
		return false
	}
	users := r[i].Users
	j := sort.SearchStrings(users, userID)
	return j < len(users) && users[j] == userID
}

// Equal compares two aggregates bucket by bucket.
func Equal(a, b message.Reactions) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Emoji != b[i].Emoji || a[i].Count != b[i].Count || a[i].Mine != b[i].Mine {
			return false
		}
		if len(a[i].Users) != len(b[i].Users) {
			return false
		}
		for j := range a[i].Users {
			if a[i].Users[j] != b[i].Users[j] {
				return false
			}
		}
	}
	return true
}

func tag(r message.Reactions, self string) message.Reactions {
	for i := range r {
		users := r[i].Users
		j := sort.SearchStrings(users, self)
		r[i].Mine = self != "" && j < len(users) && users[j] == self
	}
	return r
}

func insertSorted(users []string, id string) []string {
	i := sort.SearchStrings(users, id)
	if i < len(users) && users[i] == id {
		return users
	}
	users = append(users, "")
	copy(users[i+1:], users[i:])
	users[i] = id
	return users
}

func removeSorted(users []string, id string) []string {
	i := sort.SearchStrings(users, id)
	if i < len(users) && users[i] == id {
		return append(users[:i], users[i+1:]...)
	}
	return users
}
