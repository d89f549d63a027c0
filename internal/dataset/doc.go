// Package dataset is the logical table model shared by the planner, the SQL
// renderer and the ingestor.
//
// A Datasets bundle names the main (milestoned) table, the staging table and
// the scratch tables a plan may need. Scratch tables the caller does not
// supply are synthesized by Resolve:
//
//	<main>_legend_persistence_temp                     stitched intervals
//	<main>_legend_persistence_tempWithDeleteIndicator  tombstone re-merge
//	<staging>_legend_persistence_stageWithoutDuplicates
//	<staging>_legend_persistence_temp_staging          max-version staging
//
// Datasets and schemas are values; every helper returns a copy.
package dataset
