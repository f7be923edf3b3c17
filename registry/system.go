package registry

// System-defined groups and items. Deployments extend or override these via
// configuration; see config.Config.Registry.

var systemGroups = []GroupDefinition{
	{
		Code:        "BIZ_META",
		DisplayName: "Business Metadata",
		SortOrder:   100,
		Description: "Business-oriented metadata for governance and discovery",
	},
}

var systemItems = []ItemDefinition{
	{
		Code:        "retention_days",
		DisplayName: "Retention Days",
		Kind:        KindPrimitive,
		GroupCode:   "BIZ_META",
		Description: "Data retention period configuration in days",
	},
	{
		Code:        "table_description",
		DisplayName: "Table Description",
		Kind:        KindString,
		GroupCode:   "BIZ_META",
		Description: "Human-readable description of table purpose and content",
	},
	{
		Code:        "pii_level",
		DisplayName: "PII Level",
		Kind:        KindCodeset,
		GroupCode:   "BIZ_META",
		CodesetCode: "PII_LEVEL",
		Description: "Personal information classification level",
	},
	{
		Code:          "domain",
		DisplayName:   "Domain",
		Kind:          KindTaxonomy,
		GroupCode:     "BIZ_META",
		TaxonomyCode:  "DATA_DOMAIN",
		SelectionMode: SelectSingle,
		Description:   "Business domain this data belongs to",
	},
	{
		Code:          "tags",
		DisplayName:   "Tags",
		Kind:          KindTaxonomy,
		GroupCode:     "BIZ_META",
		TaxonomyCode:  "DATA_DOMAIN",
		SelectionMode: SelectMulti,
		Description:   "Free-form domain tags for discovery",
	},
}
