// Package model defines the job description passed to the download manager.
//
// # Job
//
// Job is one fetch-and-merge run: URL template, resolved tile range,
// concurrency limit and output path:
//
//	job, err := model.NewJob(template, bound, 16, 100, pathConfig)
//	fmt.Println(job.Range.Count()) // number of tiles
//	fmt.Println(job.OutputPath)    // where the mosaic is written
//
// # Path Configuration
//
// PathConfig controls how the output path is computed using placeholders:
//
//	cfg := &model.PathConfig{
//	    OutputDir:      "./output",
//	    FileNameFormat: "map_{xmin}-{xmax}_{ymin}-{ymax}_{z}.tif",
//	}
//
// Available placeholders: {xmin}, {xmax}, {ymin}, {ymax}, {z}
//
// Identical extents at the same zoom always produce the same path, so a
// re-run overwrites the earlier mosaic.
package model
