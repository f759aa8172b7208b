package message

import (
	"github.com/bwmarrin/discordgo"
)

// FromDiscord adapts a Discord message creation event.
func FromDiscord(ev *discordgo.MessageCreate) *Received {
	r := Received{
		ID:        ev.ID,
		Guild:     ev.GuildID,
		To:        ev.ChannelID,
		Text:      ev.Content,
		Timestamp: ev.Timestamp.UnixMilli(),
	}
	if u := ev.Author; u != nil {
		r.Sender = u.ID
		r.Name = displayName(ev.Member, u)
		r.Avatar = u.AvatarURL("")
		r.IsBot = u.Bot
	}
	return &r
}

// displayName is like Member.DisplayName, but message events carry partial
// members without a User.
func displayName(m *discordgo.Member, u *discordgo.User) string {
	if m != nil && m.Nick != "" {
		return m.Nick
	}
	return u.DisplayName()
}
