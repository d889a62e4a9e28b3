// SPDX-License-Identifier: BSD-2-Clause
//
// Copyright (c) 2025 The FreeBSD Foundation.
//
// This software was developed by Hayzam Sherif <hayzam@alchemilla.io>
// of Alchemilla Ventures Pvt. Ltd. <hello@alchemilla.io>,
// under sponsorship from the FreeBSD Foundation.

package objsync

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// RemoteLister is the remote-store collaborator the sync engine needs:
// build a listing, resolve a segmented object's
// true size, and fetch object bytes with ETag/mtime metadata. An
// interface so tests can substitute an in-memory fake.
type RemoteLister interface {
	List(ctx context.Context, container, prefix string) ([]Record, error)
	Head(ctx context.Context, key string) (size int64, etag string, modTime time.Time, err error)
	Get(ctx context.Context, key string, rangeStart int64) (body io.ReadCloser, etag string, err error)
}

// S3Lister implements RemoteLister against an S3-compatible bucket.
type S3Lister struct {
	Client *s3.Client
	Bucket string
}

// List paginates every object under prefix, normalizing zero-sized
// entries (segmented/DLO manifest markers) to their true concatenated
// size via Head.
func (l *S3Lister) List(ctx context.Context, container, prefix string) ([]Record, error) {
	var recs []Record

	paginator := s3.NewListObjectsV2Paginator(l.Client, &s3.ListObjectsV2Input{
		Bucket: aws.String(l.Bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("objsync: list %s/%s: %w", l.Bucket, prefix, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			size := aws.ToInt64(obj.Size)
			modTime := aws.ToTime(obj.LastModified)

			if size == 0 {
				if trueSize, _, headModTime, err := l.Head(ctx, key); err == nil && trueSize > 0 {
					size = trueSize
					modTime = headModTime
				}
			}

			recs = append(recs, Record{
				Container: container,
				Path:      strings.TrimPrefix(key, prefix),
				ModTime:   modTime,
				Size:      size,
			})
		}
	}

	SortRecords(recs)
	return recs, nil
}

// Head returns an object's current size, ETag, and mtime.
func (l *S3Lister) Head(ctx context.Context, key string) (int64, string, time.Time, error) {
	out, err := l.Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(l.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return 0, "", time.Time{}, fmt.Errorf("objsync: head %s: %w", key, err)
	}
	return aws.ToInt64(out.ContentLength), normalizeETag(aws.ToString(out.ETag)), aws.ToTime(out.LastModified), nil
}

// Get streams an object's body starting at rangeStart (0 for the whole
// object), for the add/update phases' chunked download.
func (l *S3Lister) Get(ctx context.Context, key string, rangeStart int64) (io.ReadCloser, string, error) {
	in := &s3.GetObjectInput{Bucket: aws.String(l.Bucket), Key: aws.String(key)}
	if rangeStart > 0 {
		in.Range = aws.String(fmt.Sprintf("bytes=%d-", rangeStart))
	}
	out, err := l.Client.GetObject(ctx, in)
	if err != nil {
		return nil, "", fmt.Errorf("objsync: get %s: %w", key, err)
	}
	return out.Body, normalizeETag(aws.ToString(out.ETag)), nil
}

// normalizeETag strips surrounding quotes. A multipart/DLO upload's ETag
// contains a "-N" part-count suffix and is not a plain MD5; IsPlainMD5ETag
// reports that distinction to callers.
func normalizeETag(etag string) string {
	return strings.Trim(etag, `"`)
}

// IsPlainMD5ETag reports whether etag looks like a bare 32-hex-digit MD5
// (as opposed to a multipart-upload composite ETag).
func IsPlainMD5ETag(etag string) bool {
	if len(etag) != 32 {
		return false
	}
	for _, c := range etag {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}
