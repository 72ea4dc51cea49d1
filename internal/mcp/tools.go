package mcp

import "github.com/mark3labs/mcp-go/mcp"

var pageOption = mcp.WithNumber("page",
	mcp.Description("Zero-based page index. A page past the end is empty."),
	mcp.Min(0),
)

var librarySyncToolDef = mcp.NewTool("library_sync",
	mcp.WithDescription("Scan the game library and diff it against managed records. "+
		"Concurrent calls share one scan. Returns success=false when the scan fails; "+
		"the previous scan result is kept."),
	mcp.WithIdempotentHintAnnotation(true),
)

var libraryStatusToolDef = mcp.NewTool("library_status",
	mcp.WithDescription("Report whether a scan is running, the library root, the last scan's counts and store health."),
	mcp.WithReadOnlyHintAnnotation(true),
)

var libraryCountToolDef = mcp.NewTool("library_count",
	mcp.WithDescription("Count games in the last scan, or managed records if no scan has run yet."),
	mcp.WithReadOnlyHintAnnotation(true),
)

var configGetToolDef = mcp.NewTool("config_get",
	mcp.WithDescription("Read a stored config entry, e.g. GameLibDir."),
	mcp.WithString("name", mcp.Required(), mcp.Description("Config entry name")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var configSetToolDef = mcp.NewTool("config_set",
	mcp.WithDescription("Write a stored config entry. Setting GameLibDir changes the library root for the next scan."),
	mcp.WithString("name", mcp.Required(), mcp.Description("Config entry name")),
	mcp.WithString("value", mcp.Required(), mcp.Description("Config entry value")),
)

var managedListToolDef = mcp.NewTool("managed_list",
	mcp.WithDescription("List managed records (key and app_id) ordered by key."),
	pageOption,
	mcp.WithReadOnlyHintAnnotation(true),
)

var managedCountToolDef = mcp.NewTool("managed_count",
	mcp.WithDescription("Count managed records."),
	mcp.WithReadOnlyHintAnnotation(true),
)

var managedAddToolDef = mcp.NewTool("managed_add",
	mcp.WithDescription("Record that a scanned game was imported under app_id. "+
		"Re-adding a key replaces its app_id; an app_id owned by another key is a CONFLICT."),
	mcp.WithString("key", mcp.Required(), mcp.Description("Identity key from unmanaged_list")),
	mcp.WithNumber("app_id", mcp.Required(), mcp.Description("Numeric id assigned by the integration")),
)

var managedRemoveToolDef = mcp.NewTool("managed_remove",
	mcp.WithDescription("Delete a managed record. Unknown keys report removed=false."),
	mcp.WithString("key", mcp.Required(), mcp.Description("Identity key")),
	mcp.WithDestructiveHintAnnotation(true),
)

var unmanagedListToolDef = mcp.NewTool("unmanaged_list",
	mcp.WithDescription("List games from the last scan that have no managed record, with everything needed to create them."),
	pageOption,
	mcp.WithReadOnlyHintAnnotation(true),
)

var removedListToolDef = mcp.NewTool("removed_list",
	mcp.WithDescription("List managed records whose game was not found by the last scan."),
	pageOption,
	mcp.WithReadOnlyHintAnnotation(true),
)
