// Package store implements the workflow loader described in SPEC_FULL.md
// §4.8: on startup, read a set of Workflow documents keyed by id from a
// document store and return an immutable collection. The original
// processor's db/repository package (since removed — its CouchDB/Postgres
// backends have no home in this domain) established the
// interface-plus-concrete-backend shape this package follows; the backend
// here is go.mongodb.org/mongo-driver, the document-store dependency
// surviving from the teacher's dependency graph.
package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/codetiger/processor/message"
)

// WorkflowLoader reads a set of Workflow documents by id.
type WorkflowLoader interface {
	Load(ctx context.Context, ids []string) ([]message.Workflow, error)
}

// MongoWorkflowStore loads Workflow documents from a MongoDB collection.
type MongoWorkflowStore struct {
	collection *mongo.Collection
}

// NewMongoWorkflowStore connects to uri and returns a store reading from
// database.workflows.
func NewMongoWorkflowStore(ctx context.Context, uri, database string) (*MongoWorkflowStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	return &MongoWorkflowStore{collection: client.Database(database).Collection("workflows")}, nil
}

// Load returns every Workflow whose id is in ids, in no particular order.
// A requested id with no matching document is silently omitted — callers
// that need strict validation should compare len(result) against len(ids).
func (s *MongoWorkflowStore) Load(ctx context.Context, ids []string) ([]message.Workflow, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	cursor, err := s.collection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("store: find: %w", err)
	}
	defer cursor.Close(ctx)

	var workflows []message.Workflow
	for cursor.Next(ctx) {
		var doc workflowDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("store: decode workflow document: %w", err)
		}
		workflows = append(workflows, doc.toWorkflow())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("store: cursor: %w", err)
	}
	return workflows, nil
}

// workflowDocument mirrors message.Workflow's JSON shape plus the Mongo "_id"
// field used as the Workflow id, since message.Workflow itself has no bson
// tags and this package is the only place that needs them.
type workflowDocument struct {
	ID                string           `bson:"_id"`
	Name              string           `bson:"name"`
	Version           int              `bson:"version"`
	Tenant            string           `bson:"tenant"`
	Origin            string           `bson:"origin"`
	Status            string           `bson:"status"`
	Condition         interface{}      `bson:"condition,omitempty"`
	Tasks             []taskDocument   `bson:"tasks"`
	InputTopic        string           `bson:"input_topic"`
	PersistOnComplete bool             `bson:"persist_on_complete"`
}

type taskDocument struct {
	ID             string      `bson:"id"`
	Name           string      `bson:"name"`
	Description    string      `bson:"description"`
	MessageStatus  string      `bson:"message_status"`
	PrevTask       string      `bson:"prev_task"`
	PrevStatusCode *string     `bson:"prev_status_code,omitempty"`
	Condition      interface{} `bson:"condition,omitempty"`
	Function       string      `bson:"function"`
	Input          interface{} `bson:"input,omitempty"`
}

func (d workflowDocument) toWorkflow() message.Workflow {
	tasks := make([]message.Task, 0, len(d.Tasks))
	for _, t := range d.Tasks {
		var code *message.StatusCode
		if t.PrevStatusCode != nil {
			c := message.StatusCode(*t.PrevStatusCode)
			code = &c
		}
		tasks = append(tasks, message.Task{
			ID:             t.ID,
			Name:           t.Name,
			Description:    t.Description,
			MessageStatus:  message.Status(t.MessageStatus),
			PrevTask:       t.PrevTask,
			PrevStatusCode: code,
			Condition:      t.Condition,
			Function:       message.TaskFunction(t.Function),
			Input:          t.Input,
		})
	}
	return message.Workflow{
		ID:                d.ID,
		Name:              d.Name,
		Version:           d.Version,
		Tenant:            d.Tenant,
		Origin:            d.Origin,
		Status:            message.WorkflowStatus(d.Status),
		Condition:         d.Condition,
		Tasks:             tasks,
		InputTopic:        d.InputTopic,
		PersistOnComplete: d.PersistOnComplete,
	}
}
