package main

import "tools.zach/dev/sabercord/internal/paths"

// DataPaths lets daemon code name data-directory files without qualifying the
// internal package.
type DataPaths = paths.DataDir
