// Command enqueue stages a CSV for ingestion end to end: it creates the
// job row, uploads the file to the bucket, and sends the queue message a
// running worker picks up. Local development tool.
package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"log"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/ignite/contact-ingest/internal/config"
	"github.com/ignite/contact-ingest/internal/queue"
)

func main() {
	file := flag.String("file", "", "path to the CSV file to ingest")
	user := flag.String("user", "", "user id the contacts belong to")
	flag.Parse()

	if *file == "" || *user == "" {
		log.Fatal("both -file and -user are required")
	}

	cfg, err := config.LoadFromEnv(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		log.Fatalf("Failed to read %s: %v", *file, err)
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		log.Fatalf("Failed to load AWS config: %v", err)
	}
	s3Client := s3.NewFromConfig(awsCfg)
	sqsClient := sqs.NewFromConfig(awsCfg)

	filename := filepath.Base(*file)
	objectKey := "uploads/" + uuid.NewString() + "_" + filename

	var jobID int
	err = db.QueryRowContext(ctx, `
		INSERT INTO jobs (job_user_id, job_original_filename, job_s3_object_key, job_status)
		VALUES ($1, $2, $3, 'PENDING')
		RETURNING job_id`,
		*user, filename, objectKey,
	).Scan(&jobID)
	if err != nil {
		log.Fatalf("Failed to create job: %v", err)
	}

	_, err = s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(cfg.Storage.Bucket),
		Key:         aws.String(objectKey),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("text/csv"),
	})
	if err != nil {
		log.Fatalf("Failed to upload %s: %v", objectKey, err)
	}

	body, err := json.Marshal(queue.JobMessage{JobID: &jobID, S3Key: &objectKey})
	if err != nil {
		log.Fatalf("Failed to marshal message: %v", err)
	}
	if _, err := sqsClient.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(cfg.Queue.URL),
		MessageBody: aws.String(string(body)),
	}); err != nil {
		log.Fatalf("Failed to send message: %v", err)
	}

	log.Printf("Job %d queued: s3://%s/%s", jobID, cfg.Storage.Bucket, objectKey)
}
