// Package archive keeps raw copies of provider webhook deliveries.
//
// The reconciler writes every delivery that passed signature verification
// under a date-partitioned key, so disputes and reconciliation bugs can be
// investigated against exactly what the provider sent:
//
//	webhooks/stripe/2024/06/01/evt_1NqV.json
//
// Two backends are provided: LocalArchive for a directory on disk and
// S3Archive for Amazon S3 or any S3-compatible service.
package archive
