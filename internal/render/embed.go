package render

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/gamestatushq/statusbot/pkg/types"
)

const (
	embedColor    = 0x2ecc71
	maxPlayerRows = 50
	maxRuleRows   = 10
)

// Options controls optional parts of the rendered embed.
type Options struct {
	// DisplayPlayerGearLevel appends each player's reported progression
	// value (gear level / score) to the player list.
	DisplayPlayerGearLevel bool
	// Now supplies the footer timestamp; defaults to time.Now.
	Now func() time.Time
}

// Render produces the status embed for one monitor. It is a pure transform
// of the fetched data; it never fails.
func Render(status types.ServerStatus, players []types.Player, rules types.Rules, opts Options) *discordgo.MessageEmbed {
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	embed := &discordgo.MessageEmbed{
		Title: status.Name,
		Color: embedColor,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Status", Value: "Online", Inline: true},
			{Name: "Players", Value: fmt.Sprintf("%d/%d", status.Players, status.MaxPlayers), Inline: true},
		},
		Timestamp: now().UTC().Format(time.RFC3339),
	}

	if status.Map != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name: "Map", Value: status.Map, Inline: true,
		})
	}
	if status.Version != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name: "Version", Value: status.Version, Inline: true,
		})
	}

	if list := renderPlayers(players, opts.DisplayPlayerGearLevel); list != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name: "Online players", Value: list,
		})
	}
	if list := renderRules(rules); list != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name: "Server settings", Value: list,
		})
	}

	return embed
}

func renderPlayers(players []types.Player, withGearLevel bool) string {
	if len(players) == 0 {
		return ""
	}

	sorted := make([]types.Player, len(players))
	copy(sorted, players)
	sort.Slice(sorted, func(i, j int) bool {
		return strings.ToLower(sorted[i].Name) < strings.ToLower(sorted[j].Name)
	})

	var b strings.Builder
	for i, p := range sorted {
		if i >= maxPlayerRows {
			fmt.Fprintf(&b, "… and %d more", len(sorted)-maxPlayerRows)
			break
		}
		name := p.Name
		if name == "" {
			name = "unknown"
		}
		if withGearLevel {
			fmt.Fprintf(&b, "%s (%d)\n", name, p.Score)
		} else {
			fmt.Fprintf(&b, "%s\n", name)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderRules(rules types.Rules) string {
	if len(rules) == 0 {
		return ""
	}

	keys := make([]string, 0, len(rules))
	for k := range rules {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i >= maxRuleRows {
			fmt.Fprintf(&b, "… %d more", len(keys)-maxRuleRows)
			break
		}
		fmt.Fprintf(&b, "%s: %s\n", k, rules[k])
	}
	return strings.TrimRight(b.String(), "\n")
}
