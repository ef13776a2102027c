package flags

// seedRegistry is the default flag set written by Init. Every feature
// starts disabled: the safety posture requires explicit enablement.
func seedRegistry(environment string) *Registry {
	return &Registry{
		Features: map[string]*Definition{
			"pyairbyte_integration": {
				Description: "PyAirbyte ingestion connectors for external data sources",
			},
			"duckdb_analytics": {
				Description:  "Embedded DuckDB analytical database",
				Dependencies: []string{"pyairbyte_integration"},
			},
			"dbt_transformations": {
				Description:  "dbt transformation workflows",
				Dependencies: []string{"duckdb_analytics"},
			},
			"sqlmesh_transformations": {
				Description:  "SQLmesh transformation workflows with virtual environments",
				Dependencies: []string{"duckdb_analytics"},
			},
			"dagster_orchestration": {
				Description:  "Dagster asset orchestration and scheduling",
				Dependencies: []string{"sqlmesh_transformations"},
			},
			"eda_automation": {
				Description:  "Automated exploratory data analysis and hypothesis generation",
				Dependencies: []string{"duckdb_analytics"},
			},
			"evidence_publishing": {
				Description:  "Evidence.dev publication site builds",
				Dependencies: []string{"sqlmesh_transformations"},
			},
		},
		Metadata: Metadata{
			Version:     "1.0.0",
			Environment: environment,
		},
		Safety: Safety{
			RequireExplicitEnable: true,
			DisableOnError:        true,
		},
	}
}
