package catalog

// Builtin returns the default product catalog covering the pre-computed
// CRM trend artifacts. A CATALOG_FILE override replaces this list.
func Builtin() []Product {
	return []Product{
		{
			ID:          "top10_volume_30d",
			DisplayName: "Top 10 by Volume (30 Days)",
			Description: "Top 10 service categories by volume in the last 30 days",
			SourceFile:  "top10.csv",
			Filter:      "ranking_type == 'Volume (Last 30 Days)'",
			UseCases:    []string{"identify highest demand", "prioritize resources", "current trends"},
			KeyMetrics:  []string{"volume", "percentage of total"},
		},
		{
			ID:          "top10_worst_p90_time",
			DisplayName: "Top 10 Worst P90 Time-to-Close",
			Description: "Top 10 categories with worst P90 time-to-close performance",
			SourceFile:  "top10.csv",
			Filter:      "ranking_type == 'Worst P90 Time-to-Close'",
			UseCases:    []string{"identify bottlenecks", "SLA violations", "performance issues"},
			KeyMetrics:  []string{"p90_days", "median_days", "request_count"},
		},
		{
			ID:          "top10_backlog_age",
			DisplayName: "Top 10 Backlog Age",
			Description: "Top 10 categories with oldest backlog (by P90 age)",
			SourceFile:  "top10.csv",
			Filter:      "ranking_type == 'Backlog Age'",
			UseCases:    []string{"identify aging backlogs", "urgent old items", "overdue requests"},
			KeyMetrics:  []string{"p90_age_days", "avg_age_days", "open_count"},
		},
		{
			ID:          "top10_trending_up",
			DisplayName: "Top 10 Trending Up",
			Description: "Top 10 categories trending upward in volume",
			SourceFile:  "top10.csv",
			Filter:      "ranking_type == 'Trending Up'",
			UseCases:    []string{"emerging issues", "growing demand", "proactive planning"},
			KeyMetrics:  []string{"absolute_change", "growth_rate", "recent_volume"},
		},
		{
			ID:          "top10_geographic_hotspots",
			DisplayName: "Top 10 Geographic Hotspots",
			Description: "Top 10 geographic areas by service request volume",
			SourceFile:  "top10.csv",
			Filter:      "ranking_type == 'Geographic Hotspots'",
			UseCases:    []string{"area-specific issues", "resource deployment", "geographic priorities"},
			KeyMetrics:  []string{"volume", "pct_of_total", "top_category"},
		},
		{
			ID:          "frequency_over_time",
			DisplayName: "Frequency Over Time",
			Description: "Monthly time series of service request volume by category from 2019-present",
			SourceFile:  "frequency_over_time.csv",
			RouteHint:   "/dashboard/analytics/frequency",
			UseCases:    []string{"identify trends", "seasonal patterns", "growth analysis", "forecasting"},
			KeyMetrics:  []string{"monthly counts per category"},
		},
		{
			ID:          "backlog_ranked_list",
			DisplayName: "Backlog Ranked List",
			Description: "Unresolved service requests ranked by count and average age",
			SourceFile:  "backlog_ranked_list.csv",
			RouteHint:   "/dashboard/analytics/backlog",
			UseCases:    []string{"identify aging issues", "urgent unresolved items", "backlog management"},
			KeyMetrics:  []string{"unresolved_count", "avg_age_days"},
		},
		{
			ID:          "backlog_distribution",
			DisplayName: "Backlog Distribution",
			Description: "Distribution of open backlogs across service categories",
			SourceFile:  "backlog_distribution.csv",
			RouteHint:   "/dashboard/analytics/backlog",
			UseCases:    []string{"backlog overview", "resource allocation", "workload distribution"},
			KeyMetrics:  []string{"open_count", "percentage"},
		},
		{
			ID:          "time_to_close",
			DisplayName: "Time to Close",
			Description: "Time-to-close statistics by category with distribution bins",
			SourceFile:  "time_to_close.csv",
			RouteHint:   "/dashboard/analytics/population",
			UseCases:    []string{"performance analysis", "SLA tracking", "efficiency metrics"},
			KeyMetrics:  []string{"median", "p75", "p90", "mean", "min", "max"},
		},
		{
			ID:          "geographic_hot_spots",
			DisplayName: "Geographic Hot Spots",
			Description: "Geographic clustering of service requests by ward/area",
			SourceFile:  "geographic_hot_spots.csv",
			RouteHint:   "/dashboard/analytics/geographic",
			UseCases:    []string{"spatial analysis", "resource deployment", "area-specific issues"},
			KeyMetrics:  []string{"request_count", "geographic coordinates"},
		},
		{
			ID:          "seasonality_heatmap",
			DisplayName: "Seasonality Heatmap",
			Description: "Day-of-week and month patterns for service requests",
			SourceFile:  "seasonality_heatmap.csv",
			UseCases:    []string{"seasonal patterns", "staffing planning", "cyclical trends"},
			KeyMetrics:  []string{"request counts by time periods"},
		},
		{
			ID:          "fcr_by_category",
			DisplayName: "First Call Resolution",
			Description: "First Call Resolution rates by service category",
			SourceFile:  "fcr_by_category.csv",
			UseCases:    []string{"quality metrics", "efficiency analysis", "customer satisfaction"},
			KeyMetrics:  []string{"FCR rate", "resolution metrics"},
		},
		{
			ID:          "priority_quadrant",
			DisplayName: "Priority Quadrant",
			Description: "Priority matrix combining volume and time-to-close (P90)",
			SourceFile:  "priority_quadrant_data_p90.csv",
			RouteHint:   "/dashboard/analytics/priority-quadrant",
			UseCases:    []string{"prioritization", "strategic planning", "resource optimization"},
			KeyMetrics:  []string{"volume", "p90_days", "quadrant assignment"},
		},
	}
}
