// Package resource implements the services mounted under the first path
// token: data, users, jsonstore and util.
package resource

import (
	"errors"
	"fmt"

	"github.com/sipico/practice-server/internal/apperr"
	"github.com/sipico/practice-server/internal/auth"
	"github.com/sipico/practice-server/internal/query"
	"github.com/sipico/practice-server/internal/service"
	"github.com/sipico/practice-server/internal/storage"
)

// Query keys understood by data GET.
const (
	paramWhere    = "where"
	paramSortBy   = "sortBy"
	paramOffset   = "offset"
	paramPageSize = "pageSize"
	paramDistinct = "distinct"
	paramCount    = "count"
	paramSelect   = "select"
	paramLoad     = "load"
)

const (
	msgUsePut         = "Use PUT to update records"
	msgMissingEntryID = "Missing entry ID"
)

// Data returns the generic collection CRUD service.
func Data() *service.Service {
	svc := service.New()
	svc.Get(":collection", dataGet)
	svc.Post(":collection", dataPost)
	svc.Put(":collection", dataPut)
	svc.Patch(":collection", dataPatch)
	svc.Delete(":collection", dataDelete)
	return svc
}

func validateTokens(tokens []string) error {
	if len(tokens) > 1 {
		return apperr.Request()
	}
	return nil
}

// notFoundOr maps store lookup failures to NotFound and anything else to a
// request error carrying the message.
func notFoundOr(err error) error {
	switch {
	case errors.Is(err, storage.ErrCollectionNotFound), errors.Is(err, storage.ErrRecordNotFound):
		return apperr.NotFound()
	case errors.Is(err, query.ErrInvalidWhere):
		return apperr.Request(query.InvalidWhereMessage)
	default:
		return apperr.Request(err.Error())
	}
}

func dataGet(ctx *service.Context, tokens []string, q service.Query, _ any) (any, error) {
	if err := validateTokens(tokens); err != nil {
		return nil, err
	}
	collection := ctx.Param("collection")

	var (
		list   []storage.Record
		record storage.Record
		err    error
	)
	switch {
	case q.Has(paramWhere) && collection != "":
		list, err = filtered(ctx.Storage, collection, q[paramWhere])
	case collection != "" && len(tokens) == 1:
		record, err = ctx.Storage.Get(collection, tokens[0])
	case collection != "":
		list, err = ctx.Storage.List(collection)
	default:
		return ctx.Storage.Collections(), nil
	}
	if err != nil {
		return nil, notFoundOr(err)
	}

	// Rules see the stored record, before select and load reshape it.
	if record != nil {
		if err := ctx.CanAccess(record, nil); err != nil {
			return nil, err
		}
		if record, err = shapeRecord(ctx, record, q); err != nil {
			return nil, notFoundOr(err)
		}
		return record, nil
	}

	list = shapeList(list, q)
	if err := ctx.CanAccessList(list); err != nil {
		return nil, err
	}
	if q.Has(paramCount) {
		return len(list), nil
	}

	for i, r := range list {
		if list[i], err = shapeRecord(ctx, r, q); err != nil {
			return nil, notFoundOr(err)
		}
	}
	return list, nil
}

func filtered(store *storage.Store, collection, where string) ([]storage.Record, error) {
	filter, err := query.ParseWhere(where)
	if err != nil {
		return nil, err
	}
	list, err := store.List(collection)
	if err != nil {
		return nil, err
	}
	return filter.Apply(list), nil
}

// shapeList applies the list-only options in order: sort, offset, page, distinct.
func shapeList(list []storage.Record, q service.Query) []storage.Record {
	if q.Has(paramSortBy) {
		query.Sort(list, query.ParseSort(q[paramSortBy]))
	}
	if q.Has(paramOffset) {
		list = query.Offset(list, q[paramOffset])
	}
	if q.Has(paramPageSize) {
		list = query.Page(list, q[paramPageSize])
	}
	if q.Has(paramDistinct) {
		list = query.Distinct(list, q[paramDistinct])
	}
	return list
}

// shapeRecord applies select and load to a single record.
func shapeRecord(ctx *service.Context, r storage.Record, q service.Query) (storage.Record, error) {
	if q.Has(paramSelect) {
		r = query.Select(r, q[paramSelect])
	}
	if !q.Has(paramLoad) {
		return r, nil
	}

	relations, err := query.ParseLoad(q[paramLoad])
	if err != nil {
		return nil, err
	}
	for _, rel := range relations {
		related, err := loadRelated(ctx, r, rel)
		if err != nil {
			return nil, err
		}
		r[rel.Prop] = related
	}
	return r, nil
}

func loadRelated(ctx *service.Context, r storage.Record, rel query.Relation) (storage.Record, error) {
	source := ctx.Storage
	if rel.Collection == auth.UsersCollection {
		source = ctx.Protected
	}

	id, ok := r[rel.IDField].(string)
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrRecordNotFound, rel.IDField)
	}
	related, err := source.Get(rel.Collection, id)
	if err != nil {
		return nil, err
	}
	delete(related, auth.FieldHashedPassword)
	return related, nil
}

func dataPost(ctx *service.Context, tokens []string, _ service.Query, body any) (any, error) {
	if err := validateTokens(tokens); err != nil {
		return nil, err
	}
	if len(tokens) > 0 {
		return nil, apperr.Request(msgUsePut)
	}

	data, ok := storage.AsRecord(body)
	if !ok {
		return nil, apperr.Request()
	}
	delete(data, storage.FieldOwnerID)
	if err := ctx.CanAccess(nil, data); err != nil {
		return nil, err
	}

	created, err := ctx.Storage.Add(ctx.Param("collection"), ctx.UserID(), data)
	if err != nil {
		return nil, apperr.Request()
	}
	return created, nil
}

// existing validates an id-addressed write and loads the stored record.
func existing(ctx *service.Context, tokens []string) (storage.Record, error) {
	if err := validateTokens(tokens); err != nil {
		return nil, err
	}
	if len(tokens) != 1 {
		return nil, apperr.Request(msgMissingEntryID)
	}
	r, err := ctx.Storage.Get(ctx.Param("collection"), tokens[0])
	if err != nil {
		return nil, apperr.NotFound()
	}
	return r, nil
}

func dataPut(ctx *service.Context, tokens []string, _ service.Query, body any) (any, error) {
	return write(ctx, tokens, body, ctx.Storage.Set)
}

func dataPatch(ctx *service.Context, tokens []string, _ service.Query, body any) (any, error) {
	return write(ctx, tokens, body, ctx.Storage.Merge)
}

func write(ctx *service.Context, tokens []string, body any, apply func(collection, id string, data storage.Record) (storage.Record, error)) (any, error) {
	current, err := existing(ctx, tokens)
	if err != nil {
		return nil, err
	}

	data, ok := storage.AsRecord(body)
	if !ok {
		return nil, apperr.Request()
	}
	if err := ctx.CanAccess(current, data); err != nil {
		return nil, err
	}

	updated, err := apply(ctx.Param("collection"), tokens[0], data)
	if err != nil {
		return nil, apperr.Request()
	}
	return updated, nil
}

func dataDelete(ctx *service.Context, tokens []string, _ service.Query, _ any) (any, error) {
	current, err := existing(ctx, tokens)
	if err != nil {
		return nil, err
	}
	if err := ctx.CanAccess(current, nil); err != nil {
		return nil, err
	}

	deleted, err := ctx.Storage.Delete(ctx.Param("collection"), tokens[0])
	if err != nil {
		return nil, apperr.Request()
	}
	return deleted, nil
}
