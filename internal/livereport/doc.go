// Package livereport streams campaign progress to the remote report server.
//
// The engine calls the Reporter façade, which queues an Event and returns.
// A single Worker goroutine delivers the queue in id order through an
// Adapter (RESTAdapter by default). Retriable outcomes (connection error,
// timeout, no response, HTTP 404 and 503) keep the event at the head of the
// queue with a linear back-off; other failures and events still queued when
// the last-chance deadline passes go to a DeadLetterSink.
//
// Server endpoints:
//
//	POST /campaigns                    start_campaign
//	GET  /campaigns/{id}               CampaignExists
//	PUT  /campaigns/{id}               stop_campaign
//	POST /campaigns/{id}/attachments   campaign_resource
//	POST /tests                        start_testcase
//	POST /tests/bulk                   bulk_testcases
//	PUT  /tests/{id}                   update_testcase, stop_testcase
//	POST /tests/{id}/attachments       testcase_resource
//	POST /tests/{id}/charts            testcase_chart
package livereport
