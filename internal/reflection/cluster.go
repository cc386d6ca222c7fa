// Package reflection implements the Reflection Engine (C12, spec §4.9):
// clusters long-term memories that share a tag (co-access is not used for
// clustering), and distills
// each cluster into a REFLECTIVE memory with a confidence score derived
// from cluster coherence. Grounded on the teacher's internal/rag package
// for the clustering/aggregation shape, generalized from document chunks
// to memory records.
package reflection

import (
	"sort"

	"github.com/google/uuid"

	"github.com/memoryfabric/agentic-memory/internal/model"
)

// MinClusterSize is the minimum number of memories a cluster must contain
// to be eligible for reflection (spec §4.2: "default 5").
const MinClusterSize = 5

// PruneConfidenceThreshold is the confidence below which a produced
// reflection is discarded rather than persisted (spec §4.2).
const PruneConfidenceThreshold = 0.3

// cluster is a candidate group of co-tagged long-term memories.
type cluster struct {
	tag     string
	members []*model.Record
}

// findTagClusters groups eligible records by shared tag, keeping only
// groups meeting MinClusterSize. A record may appear in more than one
// cluster if it carries more than one qualifying tag; source memories are
// not exclusive to one reflection (spec §9: reflections reference
// sources, sources don't know their reflections).
func findTagClusters(records []*model.Record) []cluster {
	byTag := make(map[string][]*model.Record)
	for _, r := range records {
		for _, tag := range r.Tags {
			byTag[tag] = append(byTag[tag], r)
		}
	}

	tags := make([]string, 0, len(byTag))
	for tag := range byTag {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	var clusters []cluster
	for _, tag := range tags {
		members := byTag[tag]
		if len(members) < MinClusterSize {
			continue
		}
		sort.Slice(members, func(i, j int) bool { return members[i].ID.String() < members[j].ID.String() })
		clusters = append(clusters, cluster{tag: tag, members: members})
	}
	return clusters
}

func sourceIDs(c cluster) []uuid.UUID {
	ids := make([]uuid.UUID, len(c.members))
	for i, m := range c.members {
		ids[i] = m.ID
	}
	return ids
}
