package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// Default cluster radii. Weather clusters are tight because conditions vary
// over short distances; flood clusters follow river basins and can be wider.
const (
	WeatherClusterRadiusKm = 10.0
	FloodClusterRadiusKm   = 25.0
)

// ClusterID derives the deterministic cluster id from a centroid rounded to
// two decimal places. Two centroids that round alike share an id.
func ClusterID(family Family, center Geo) string {
	prefix := "cluster"
	if family == FamilyFlood {
		prefix = "flood_cluster"
	}
	return fmt.Sprintf("%s_%.2f_%.2f", prefix, center.Lat, center.Lon)
}

// Centroid returns the arithmetic mean of the points. Zero value for an
// empty slice.
func Centroid(points []Geo) Geo {
	if len(points) == 0 {
		return Geo{}
	}
	var lat, lon float64
	for _, p := range points {
		lat += p.Lat
		lon += p.Lon
	}
	n := float64(len(points))
	return Geo{Lat: lat / n, Lon: lon / n}
}

// BuildClusters groups subscriber locations into radius-bounded clusters
// with a greedy single pass: each unassigned point seeds a cluster and
// absorbs every later unassigned point within radiusKm of the seed. The
// center is the mean of the final membership, computed once per pass.
// Subscribers without valid coordinates are skipped. O(n²) worst case by
// design; there is no spatial index.
func BuildClusters(family Family, subs []Subscriber, radiusKm float64) []Cluster {
	assigned := make([]bool, len(subs))
	var clusters []Cluster

	for i, seed := range subs {
		if assigned[i] || !seed.Geo.Valid() {
			continue
		}
		assigned[i] = true
		members := []uuid.UUID{seed.UserID}
		points := []Geo{seed.Geo}

		for j := i + 1; j < len(subs); j++ {
			if assigned[j] || !subs[j].Geo.Valid() {
				continue
			}
			if DistanceKm(seed.Geo, subs[j].Geo) <= radiusKm {
				assigned[j] = true
				members = append(members, subs[j].UserID)
				points = append(points, subs[j].Geo)
			}
		}

		center := Centroid(points)
		now := clock.Now().UTC()
		clusters = append(clusters, Cluster{
			ID:        ClusterID(family, center),
			Family:    family,
			Center:    center,
			MemberIDs: members,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}

	return clusters
}

// FirstClusterWithin returns the index of the first cluster in storage order
// whose center lies within radiusKm of the location, or -1. First match, not
// nearest match: assignment order is part of the cluster identity contract.
func FirstClusterWithin(clusters []Cluster, loc Geo, radiusKm float64) int {
	for i := range clusters {
		if DistanceKm(clusters[i].Center, loc) <= radiusKm {
			return i
		}
	}
	return -1
}

// NewSingletonCluster forms a cluster containing only the given subscriber,
// centered at their location.
func NewSingletonCluster(family Family, sub Subscriber) Cluster {
	now := clock.Now().UTC()
	return Cluster{
		ID:        ClusterID(family, sub.Geo),
		Family:    family,
		Center:    sub.Geo,
		MemberIDs: []uuid.UUID{sub.UserID},
		CreatedAt: now,
		UpdatedAt: now,
	}
}
