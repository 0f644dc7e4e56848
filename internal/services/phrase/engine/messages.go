package engine

// Catalog keys of the user-visible warnings, registered by the i18n catalog
// under the "phrase" namespace.
const (
	msgTemplateMissing = "phrase.warn.template_missing"
	msgDidYouMean      = "phrase.warn.did_you_mean"
	msgStuckProperties = "phrase.warn.stuck_properties"
	msgEntityMissing   = "phrase.warn.entity_missing"
	msgUnknownSeverity = "phrase.warn.unknown_severity"
	msgTableMissing    = "phrase.warn.table_missing"
)
