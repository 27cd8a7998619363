//go:build nocgo

package filestatus

import (
	_ "modernc.org/sqlite"
)

const driverName = "sqlite"
