// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package workflow

import "fmt"

// commonLines are appended to both cases: prescribed sowing dates plus the
// daily (h1) and annual (h2) history tapes the GDD tools read.
func commonLines(meshFile, sowingFile string) []string {
	return []string{
		fmt.Sprintf("stream_meshfile_cropcal = '%s'", meshFile),
		fmt.Sprintf("stream_fldFileName_sdate = '%s'", sowingFile),
		"stream_year_first_cropcal = 2000",
		"stream_year_last_cropcal = 2000",
		"model_year_align_cropcal = 2000",
		" ",
		"! (h1) Daily outputs for GDD generation and figure-making",
		"hist_fincl2 = 'HUI', 'GDDACCUM', 'GDDHARV'",
		"hist_nhtfrq(2) = -24",
		"hist_mfilt(2) = 365",
		"hist_type1d_pertape(2) = 'PFTS'",
		"hist_dov2xy(2) = .false.",
		" ",
		"! (h2) Annual outputs for GDD generation (checks)",
		"hist_fincl3 = 'GRAINC_TO_FOOD_PERHARV', 'GRAINC_TO_FOOD_ANN', 'SDATES', 'SDATES_PERHARV', 'SYEARS_PERHARV', 'HDATES', 'GDDHARV_PERHARV', 'GDDACCUM_PERHARV', 'HUI_PERHARV', 'SOWING_REASON_PERHARV', 'HARVEST_REASON_PERHARV'",
		"hist_nhtfrq(3) = 17520",
		"hist_mfilt(3) = 999",
		"hist_type1d_pertape(3) = 'PFTS'",
		"hist_dov2xy(3) = .false.",
	}
}

func gddGenLines() []string {
	return []string{
		"generate_crop_gdds = .true.",
		"use_mxmat = .false.",
	}
}

func landuseLines(landuseFile string) []string {
	return []string{
		fmt.Sprintf("flanduse_timeseries = '%s'", landuseFile),
	}
}

func surfaceLines(surfaceFile string) []string {
	return []string{
		fmt.Sprintf("fsurdat = '%s'", surfaceFile),
		"do_transient_crops = .false.",
		"flanduse_timeseries = ''",
		"use_init_interp = .true.",
	}
}

func prescribedLines(gddsFile string) []string {
	return []string{
		"generate_crop_gdds = .false.",
		fmt.Sprintf("stream_fldFileName_cultivar_gdds = '%s'", gddsFile),
	}
}
