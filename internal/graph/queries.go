package graph

const (
	SaveDocumentQuery = `
		MERGE (d:Document {id: $id, namespace: $namespace})
		SET d.title = $title,
			d.breadcrumb = $breadcrumb,
			d.fingerprint = $fingerprint,
			d.ingested_at = $ingested_at
		RETURN d.id AS id
	`

	SaveEntityQuery = `
		MERGE (n:Entity {name: $name, type: $type, namespace: $namespace})
		ON CREATE SET n.uuid = $uuid, n.created_at = $created_at
		SET n.confidence = $confidence
		RETURN n.uuid AS uuid
	`

	SaveMentionEdgeQuery = `
		MATCH (d:Document {id: $doc_id, namespace: $namespace})
		MATCH (n:Entity {uuid: $entity_uuid})
		MERGE (d)-[e:MENTIONS]->(n)
		SET e.confidence = $confidence
		RETURN n.uuid AS uuid
	`

	SaveRelationEdgeQuery = `
		MATCH (a:Entity {name: $source, namespace: $namespace})
		MATCH (b:Entity {name: $target, namespace: $namespace})
		MERGE (a)-[e:RELATES_TO {kind: $kind}]->(b)
		SET e.fact = $fact,
			e.doc_id = $doc_id
		RETURN e.kind AS kind
	`

	UpsertFingerprintQuery = `
		MERGE (f:Fingerprint {doc_id: $doc_id, namespace: $namespace})
		SET f.hash = $hash,
			f.processed_at = $processed_at
		RETURN f.hash AS hash
	`

	GetFingerprintQuery = `
		MATCH (f:Fingerprint {doc_id: $doc_id, namespace: $namespace})
		RETURN f.hash AS hash
	`

	SearchEntitiesQuery = `
		MATCH (n:Entity {namespace: $namespace})
		WHERE toLower(n.name) CONTAINS toLower($query)
		OPTIONAL MATCH (d:Document)-[:MENTIONS]->(n)
		RETURN n.name AS name, n.type AS type, collect(DISTINCT d.title) AS documents
		LIMIT 20
	`
)
