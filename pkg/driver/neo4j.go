package driver

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/soundprediction/ontoscore/pkg/types"
)

// Neo4jDriver implements the Driver contract against a Neo4j database over
// the Bolt protocol. Version rows are stored as (:Object) nodes, links as
// [:LINK] relationships between their endpoint version rows. Property bags
// are serialized to JSON strings since Neo4j properties cannot nest.
type Neo4jDriver struct {
	client   neo4j.DriverWithContext
	database string
}

// NewNeo4jDriver creates a new Neo4j driver instance.
func NewNeo4jDriver(uri, username, password, database string) (*Neo4jDriver, error) {
	client, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}
	if database == "" {
		database = "neo4j"
	}
	return &Neo4jDriver{client: client, database: database}, nil
}

func (n *Neo4jDriver) Provider() Provider { return ProviderNeo4j }

func (n *Neo4jDriver) Close() error {
	return n.client.Close(context.Background())
}

// CreateIndices creates the uniqueness constraints and lookup indexes the
// driver's queries rely on.
func (n *Neo4jDriver) CreateIndices(ctx context.Context) error {
	session := n.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: n.database})
	defer session.Close(ctx)

	statements := []string{
		"CREATE CONSTRAINT object_id_unique IF NOT EXISTS FOR (o:Object) REQUIRE o.object_id IS UNIQUE",
		"CREATE INDEX object_identity IF NOT EXISTS FOR (o:Object) ON (o.identity_key)",
		"CREATE INDEX object_type IF NOT EXISTS FOR (o:Object) ON (o.object_type)",
		"CREATE INDEX link_id IF NOT EXISTS FOR ()-[r:LINK]-() ON (r.link_id)",
		"CREATE INDEX link_type IF NOT EXISTS FOR ()-[r:LINK]-() ON (r.link_type)",
	}
	for _, stmt := range statements {
		if _, err := session.Run(ctx, stmt, nil); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

func objectToParams(o *types.Object) (map[string]any, error) {
	props, err := json.Marshal(o.Properties)
	if err != nil {
		return nil, err
	}
	params := map[string]any{
		"object_id":        o.ID,
		"object_type":      string(o.Type),
		"identity_key":     o.IdentityKey,
		"version":          o.Version,
		"valid_from":       o.ValidFrom,
		"source_documents": o.SourceDocuments,
		"confidence":       o.Confidence,
		"properties":       string(props),
		"created_at":       o.CreatedAt,
		"updated_at":       o.UpdatedAt,
	}
	if o.ValidUntil != nil {
		params["valid_until"] = *o.ValidUntil
	} else {
		params["valid_until"] = nil
	}
	return params, nil
}

func objectFromProps(props map[string]any) (*types.Object, error) {
	obj := &types.Object{
		ID:          stringProp(props, "object_id"),
		Type:        types.ObjectType(stringProp(props, "object_type")),
		IdentityKey: stringProp(props, "identity_key"),
	}
	if v, ok := props["version"].(int64); ok {
		obj.Version = int(v)
	}
	if v, ok := props["confidence"].(float64); ok {
		obj.Confidence = v
	}
	obj.ValidFrom = timeProp(props, "valid_from")
	obj.CreatedAt = timeProp(props, "created_at")
	obj.UpdatedAt = timeProp(props, "updated_at")
	if t := timeProp(props, "valid_until"); !t.IsZero() {
		obj.ValidUntil = &t
	}
	if docs, ok := props["source_documents"].([]any); ok {
		for _, d := range docs {
			if s, ok := d.(string); ok {
				obj.SourceDocuments = append(obj.SourceDocuments, s)
			}
		}
	}
	if raw := stringProp(props, "properties"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &obj.Properties); err != nil {
			return nil, fmt.Errorf("decode object properties: %w", err)
		}
	}
	return obj, nil
}

func linkToParams(l *types.Link) (map[string]any, error) {
	props, err := json.Marshal(l.Properties)
	if err != nil {
		return nil, err
	}
	params := map[string]any{
		"link_id":    l.ID,
		"link_type":  string(l.Type),
		"source_id":  l.SourceID,
		"target_id":  l.TargetID,
		"valid_from": l.ValidFrom,
		"strength":   l.Strength,
		"confidence": l.Confidence,
		"properties": string(props),
		"created_at": l.CreatedAt,
	}
	if l.ValidUntil != nil {
		params["valid_until"] = *l.ValidUntil
	} else {
		params["valid_until"] = nil
	}
	return params, nil
}

func linkFromProps(props map[string]any) (*types.Link, error) {
	link := &types.Link{
		ID:       stringProp(props, "link_id"),
		Type:     types.LinkType(stringProp(props, "link_type")),
		SourceID: stringProp(props, "source_object_id"),
		TargetID: stringProp(props, "target_object_id"),
	}
	if v, ok := props["strength"].(float64); ok {
		link.Strength = v
	}
	if v, ok := props["confidence"].(float64); ok {
		link.Confidence = v
	}
	link.ValidFrom = timeProp(props, "valid_from")
	link.CreatedAt = timeProp(props, "created_at")
	if t := timeProp(props, "valid_until"); !t.IsZero() {
		link.ValidUntil = &t
	}
	if raw := stringProp(props, "properties"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &link.Properties); err != nil {
			return nil, fmt.Errorf("decode link properties: %w", err)
		}
	}
	return link, nil
}

func stringProp(props map[string]any, key string) string {
	if s, ok := props[key].(string); ok {
		return s
	}
	return ""
}

func timeProp(props map[string]any, key string) time.Time {
	switch t := props[key].(type) {
	case time.Time:
		return t
	case dbtype.LocalDateTime:
		return t.Time()
	}
	return time.Time{}
}

const linkReturn = ` RETURN r{.*, source_object_id: s.object_id, target_object_id: t.object_id} AS link`

func (n *Neo4jDriver) readLinks(ctx context.Context, query string, params map[string]any) ([]*types.Link, error) {
	session := n.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: n.database})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j read links: %w", err)
	}

	records := result.([]*db.Record)
	out := make([]*types.Link, 0, len(records))
	for _, record := range records {
		raw, found := record.Get("link")
		if !found {
			continue
		}
		props, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("unexpected link record type %T", raw)
		}
		link, err := linkFromProps(props)
		if err != nil {
			return nil, err
		}
		out = append(out, link)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (n *Neo4jDriver) readObjects(ctx context.Context, query string, params map[string]any) ([]*types.Object, error) {
	session := n.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: n.database})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j read objects: %w", err)
	}

	records := result.([]*db.Record)
	out := make([]*types.Object, 0, len(records))
	for _, record := range records {
		raw, found := record.Get("o")
		if !found {
			continue
		}
		node, ok := raw.(dbtype.Node)
		if !ok {
			return nil, fmt.Errorf("unexpected object record type %T", raw)
		}
		obj, err := objectFromProps(node.Props)
		if err != nil {
			return nil, err
		}
		out = append(out, obj)
	}
	return out, nil
}

func (n *Neo4jDriver) GetObject(ctx context.Context, objectID string) (*types.Object, error) {
	objects, err := n.readObjects(ctx,
		`MATCH (o:Object {object_id: $object_id}) RETURN o`,
		map[string]any{"object_id": objectID})
	if err != nil {
		return nil, err
	}
	if len(objects) == 0 {
		return nil, types.NewObjectNotFoundError(objectID)
	}
	return objects[0], nil
}

func (n *Neo4jDriver) GetChain(ctx context.Context, identityKey string) ([]*types.Object, error) {
	return n.readObjects(ctx,
		`MATCH (o:Object {identity_key: $identity_key}) RETURN o ORDER BY o.version ASC`,
		map[string]any{"identity_key": identityKey})
}

func (n *Neo4jDriver) TransitionVersion(ctx context.Context, identityKey string, expectedVersion int, closeAt time.Time, next *types.Object) error {
	params, err := objectToParams(next)
	if err != nil {
		return err
	}
	params["expected_version"] = expectedVersion
	params["close_at"] = closeAt

	session := n.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: n.database})
	defer session.Close(ctx)

	var query string
	if expectedVersion == 0 {
		query = `
			OPTIONAL MATCH (existing:Object {identity_key: $identity_key})
			WITH count(existing) AS chain_len
			WHERE chain_len = 0
			CREATE (o:Object {object_id: $object_id, object_type: $object_type,
				identity_key: $identity_key, version: $version, valid_from: $valid_from,
				valid_until: $valid_until, source_documents: $source_documents,
				confidence: $confidence, properties: $properties,
				created_at: $created_at, updated_at: $updated_at})
			RETURN o.object_id AS id
		`
	} else {
		query = `
			MATCH (cur:Object {identity_key: $identity_key, version: $expected_version})
			WHERE cur.valid_until IS NULL
			SET cur.valid_until = $close_at, cur.updated_at = $close_at
			CREATE (o:Object {object_id: $object_id, object_type: $object_type,
				identity_key: $identity_key, version: $version, valid_from: $valid_from,
				valid_until: $valid_until, source_documents: $source_documents,
				confidence: $confidence, properties: $properties,
				created_at: $created_at, updated_at: $updated_at})
			RETURN o.object_id AS id
		`
	}

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return fmt.Errorf("neo4j transition version: %w", err)
	}
	if len(result.([]*db.Record)) == 0 {
		return &types.ConflictError{Key: identityKey, Message: "version mismatch"}
	}
	return nil
}

func (n *Neo4jDriver) ScanObjects(ctx context.Context, objectType types.ObjectType, asOf time.Time) ([]*types.Object, error) {
	objects, err := n.readObjects(ctx,
		`MATCH (o:Object {object_type: $object_type}) RETURN o ORDER BY o.object_id ASC`,
		map[string]any{"object_type": string(objectType)})
	if err != nil {
		return nil, err
	}
	out := objects[:0]
	for _, obj := range objects {
		if obj.IsValidAt(asOf) {
			out = append(out, obj)
		}
	}
	return out, nil
}

func (n *Neo4jDriver) GetLink(ctx context.Context, linkID string) (*types.Link, error) {
	links, err := n.readLinks(ctx,
		`MATCH (s:Object)-[r:LINK {link_id: $link_id}]->(t:Object)`+linkReturn,
		map[string]any{"link_id": linkID})
	if err != nil {
		return nil, err
	}
	if len(links) == 0 {
		return nil, types.NewLinkNotFoundError(linkID)
	}
	return links[0], nil
}

func (n *Neo4jDriver) PutLink(ctx context.Context, link *types.Link) error {
	params, err := linkToParams(link)
	if err != nil {
		return err
	}

	session := n.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: n.database})
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (s:Object {object_id: $source_id}), (t:Object {object_id: $target_id})
			WHERE NOT EXISTS { MATCH ()-[dup:LINK {link_id: $link_id}]->() }
			CREATE (s)-[r:LINK {link_id: $link_id, link_type: $link_type,
				valid_from: $valid_from, valid_until: $valid_until,
				strength: $strength, confidence: $confidence,
				properties: $properties, created_at: $created_at}]->(t)
			RETURN r.link_id AS id
		`, params)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return fmt.Errorf("neo4j put link: %w", err)
	}
	if len(result.([]*db.Record)) == 0 {
		return &types.ConflictError{Key: link.ID, Message: "link id already exists"}
	}
	return nil
}

func (n *Neo4jDriver) CloseLink(ctx context.Context, linkID string, asOf time.Time) error {
	session := n.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: n.database})
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH ()-[r:LINK {link_id: $link_id}]->()
			SET r.valid_until = $as_of
			RETURN r.link_id AS id
		`, map[string]any{"link_id": linkID, "as_of": asOf})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return fmt.Errorf("neo4j close link: %w", err)
	}
	if len(result.([]*db.Record)) == 0 {
		return types.NewLinkNotFoundError(linkID)
	}
	return nil
}

func (n *Neo4jDriver) LinksTouching(ctx context.Context, objectID string) ([]*types.Link, error) {
	return n.readLinks(ctx,
		`MATCH (s:Object)-[r:LINK]->(t:Object)
		 WHERE s.object_id = $object_id OR t.object_id = $object_id`+linkReturn,
		map[string]any{"object_id": objectID})
}

func (n *Neo4jDriver) ScanLinks(ctx context.Context, linkType types.LinkType, asOf time.Time) ([]*types.Link, error) {
	links, err := n.readLinks(ctx,
		`MATCH (s:Object)-[r:LINK {link_type: $link_type}]->(t:Object)`+linkReturn,
		map[string]any{"link_type": string(linkType)})
	if err != nil {
		return nil, err
	}
	out := links[:0]
	for _, link := range links {
		if link.IsValidAt(asOf) {
			out = append(out, link)
		}
	}
	return out, nil
}
