package compiler

// schemaSource constrains every ingest.<name> struct. Definitions are
// closed, so misspelled fields fail compilation with a position.
const schemaSource = `
#Ingest: {
	mode:      #Mode
	main:      #Dataset
	staging:   #Dataset & {fields: [_, ...]}
	metadata?: #Metadata
	options?:  #Options
	splits?: [...#Split]
}

#Dataset: {
	name:      string & !=""
	database?: string
	alias?:    string
	fields?: [...#Field]
}

#Metadata: {
	name:      string & !=""
	database?: string
}

#Field: {
	name:         string & !=""
	type:         string & !=""
	length?:      int & >0
	scale?:       int & >=0
	primary_key?: bool
	not_null?:    bool
}

#Mode: {
	kind:                     "UnitemporalDelta" | "UnitemporalSnapshot" | "BitemporalDelta" | "BitemporalSnapshot"
	digest?:                  string
	transaction_milestoning?: #Milestoning
	validity?:                #Validity
	delete_indicator?:        #DeleteIndicator
	deduplication?:           "AllowDuplicates" | "FilterDuplicates" | "FailOnDuplicates"
	versioning?:              #Versioning
	data_split_field?:        string
	optimization_filters?: [...string]
	partition_fields?: [...string]
	partition_values?: [string]: [...string]
	empty_batch?: "NoOp" | "FailEmptyBatch" | "DeleteTargetData"
}

#Milestoning: {
	kind:           "BatchId" | "DateTime" | "BatchIdAndDateTime"
	batch_id_in?:   string
	batch_id_out?:  string
	date_time_in?:  string
	date_time_out?: string
}

#Validity: {
	from:            string
	through:         string
	source_from:     string
	source_through?: string
}

#DeleteIndicator: {
	field: string
	values: [string, ...string]
}

#Versioning: {
	kind:                            "NoVersioning" | "MaxVersion"
	fail_on_duplicate_primary_keys?: bool
	field?:                          string
	resolver?:                       "DigestBased" | "GREATER_THAN" | "GREATER_THAN_EQUAL_TO"
	perform_stage_versioning?:       bool
}

#Options: {
	cleanup_staging_data?:          bool
	collect_statistics?:            bool
	enable_schema_evolution?:       bool
	add_optimization_filters?:      bool
	unique_temp_tables?:            bool
	temp_table_suffix?:             string
	case_conversion?:               "NONE" | "TO_UPPER" | "TO_LOWER"
	batch_id_pattern?:              string
	batch_start_timestamp_pattern?: string
	batch_end_timestamp_pattern?:   string
}

#Split: {
	lower: int
	upper: int & >=lower
}
`
