package message

// Reaction is the aggregate of users who reacted to a message with one emoji.
// Users is kept sorted and free of duplicates; Mine is derived for the viewing user.
type Reaction struct {
	Emoji string   `json:"emoji"`
	Count int      `json:"count"`
	Users []string `json:"users"`
	Mine  bool     `json:"mine"`
}

// Reactions keeps emoji buckets in first-seen order.
type Reactions []Reaction

func (r Reactions) Clone() Reactions {
	if r == nil {
		return nil
	}
	out := make(Reactions, len(r))
	for i, b := range r {
		out[i] = b
		out[i].Users = append([]string(nil), b.Users...)
	}
	return out
}

// Find returns the bucket index for emoji or -1.
func (r Reactions) Find(emoji string) int {
	for i := range r {
		if r[i].Emoji == emoji {
			return i
		}
	}
	return -1
}
