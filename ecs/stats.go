package ecs

import (
	"sort"
)

// StorageStats is a point-in-time summary of a Storage.
type StorageStats struct {
	TotalEntityCount int
	ColumnCount      int
	SingletonCount   int
	HierarchyRoots   int
	ColumnBreakdown  []ColumnStats
	SingletonTypes   []string
}

// ColumnStats counts the entities holding one component type.
type ColumnStats struct {
	Type        string
	EntityCount int
}

// CollectStats gathers entity, column and singleton counts. Columns are
// sorted by type name.
func (s *Storage) CollectStats() StorageStats {
	stats := StorageStats{
		TotalEntityCount: s.EntityCount(),
		ColumnCount:      len(s.columns),
		SingletonCount:   len(s.singletons),
	}

	for typ, column := range s.columns {
		stats.ColumnBreakdown = append(stats.ColumnBreakdown, ColumnStats{
			Type:        typ.String(),
			EntityCount: column.Len(),
		})
	}
	sort.Slice(stats.ColumnBreakdown, func(i, j int) bool {
		return stats.ColumnBreakdown[i].Type < stats.ColumnBreakdown[j].Type
	})

	for typ := range s.singletons {
		stats.SingletonTypes = append(stats.SingletonTypes, typ.String())
	}
	sort.Strings(stats.SingletonTypes)

	// Roots are parents that have no parent themselves
	if kids, ok := s.columns[childrenType]; ok {
		for index := range kids.Iter() {
			id, ok := s.entities.spawnedAt(uint32(index))
			if !ok {
				continue
			}
			if _, hasParent := s.Parent(id); !hasParent {
				stats.HierarchyRoots++
			}
		}
	}

	return stats
}
