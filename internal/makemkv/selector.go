package makemkv

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"carat/internal/services"
)

// titleCandidate accumulates scan evidence for one title ID.
type titleCandidate struct {
	id       string
	score    int
	chapters int
}

// SelectPrimaryTitle scans the source and returns the ID of the title with
// the best object-audio evidence. Scores accumulate as a running maximum per
// title; chapter counts break ties because the album cut carries per-track
// chapter marks.
func (c *Client) SelectPrimaryTitle(ctx context.Context, sourceSpec string) (string, error) {
	lines, err := c.Scan(ctx, sourceSpec, "Scanning titles")
	if err != nil {
		return "", services.Wrap(services.ErrCommandFailed, "scanning", "makemkv info", "", err)
	}
	return c.scoreTitles(lines)
}

func (c *Client) scoreTitles(lines []string) (string, error) {
	candidates := map[string]*titleCandidate{}
	track := func(id string) *titleCandidate {
		cand, ok := candidates[id]
		if !ok {
			cand = &titleCandidate{id: id}
			candidates[id] = cand
		}
		return cand
	}

	for _, line := range lines {
		parts := strings.Split(line, ",")
		if len(parts) < 4 {
			continue
		}
		head := strings.SplitN(parts[0], ":", 2)
		if len(head) != 2 {
			continue
		}
		id := head[1]
		switch {
		case strings.HasPrefix(line, "TINFO:"):
			// Attribute 9 with value code 4 is the chapter count.
			if parts[1] == "9" && parts[2] == "4" {
				if n, err := strconv.Atoi(strings.Trim(parts[3], `"`)); err == nil {
					track(id).chapters = n
				}
			}
		case strings.HasPrefix(line, "SINFO:"):
			// Only evidence lines create a candidate; an unmatched stream
			// line must not pull its title into the result set.
			info := strings.Join(parts[3:], ",")
			switch {
			case strings.Contains(info, "A_TRUEHD") || strings.Contains(info, "TrueHD Atmos"):
				cand := track(id)
				cand.score = max(cand.score, c.tiers.Lossless)
			case strings.Contains(info, "A_EAC3") && strings.Contains(info, "Atmos"):
				cand := track(id)
				cand.score = max(cand.score, c.tiers.Lossy)
			}
		}
	}

	if len(candidates) == 0 {
		return "", services.Wrap(services.ErrNoTitlesFound, "scanning", "title selection", "scan produced no title evidence", nil)
	}

	ranked := make([]*titleCandidate, 0, len(candidates))
	for _, cand := range candidates {
		ranked = append(ranked, cand)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		if ranked[i].chapters != ranked[j].chapters {
			return ranked[i].chapters > ranked[j].chapters
		}
		return ranked[i].id < ranked[j].id
	})
	winner := ranked[0]

	if winner.score < c.tiers.Lossy {
		return "", services.Wrap(
			services.ErrNoObjectAudioTrack,
			"scanning",
			"title selection",
			"no title carries a TrueHD or EAC3 Atmos stream",
			nil,
		)
	}

	c.bus.Message(fmt.Sprintf(
		"[*] Selected title %s (score %d, %d chapters)", winner.id, winner.score, winner.chapters))
	return winner.id, nil
}
