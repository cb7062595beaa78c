package migrations

import "embed"

// FS 内嵌迁移脚本，文件名格式为 N_name.sql
//
//go:embed scripts/*.sql
var FS embed.FS
