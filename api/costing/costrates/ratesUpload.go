package costrates

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/xuri/excelize/v2"

	"CostwiseERP/api"
	"CostwiseERP/api/auth"
	"CostwiseERP/api/constants"
	"CostwiseERP/internal/config"
	"CostwiseERP/internal/notification"
	"CostwiseERP/internal/rates"
)

// parseUploadRows turns the uploaded bytes into a rectangular string
// grid, first row included. Supported: .xlsx (first sheet), .xls, .csv.
func parseUploadRows(filename string, data []byte) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		f, err := excelize.OpenReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to open xlsx: %w", err)
		}
		defer f.Close()
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("xlsx has no sheets")
		}
		return f.GetRows(sheets[0])
	case ".xls":
		wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
		if err != nil {
			return nil, fmt.Errorf("failed to open xls: %w", err)
		}
		return wb.ReadAllCells(maxXLSRows), nil
	case ".csv":
		reader := csv.NewReader(bytes.NewReader(data))
		reader.FieldsPerRecord = -1
		return reader.ReadAll()
	default:
		return nil, fmt.Errorf("%s", constants.ErrUnsupportedFile)
	}
}

// maxXLSRows caps how many legacy .xls rows are read in one go.
const maxXLSRows = 1 << 20

// alreadyImported reports whether this exact file was already applied
// to this sheet and periode, so a double-click upload is a no-op.
func alreadyImported(ctx context.Context, pool *pgxpool.Pool, sheetName, periode, fileHash string) (bool, error) {
	var exists bool
	err := pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM rateimportbatches
		  WHERE sheet=$1 AND periode=$2 AND file_hash=$3 AND status='completed')`,
		sheetName, periode, fileHash).Scan(&exists)
	return exists, err
}

// ImportRates replaces one sheet's rates for one periode from an
// uploaded file. Validation is all-or-nothing: any row error rejects
// the whole file and nothing is written.
func ImportRates(pool *pgxpool.Pool, def SheetDef, notifier notification.Notifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(config.MaxUploadBytes); err != nil {
			api.RespondWithError(w, http.StatusBadRequest, "Invalid form data: "+err.Error())
			return
		}
		userID := r.FormValue("user_id")
		uploadedBy := auth.SessionEmail(userID)
		if uploadedBy == "" {
			api.RespondWithError(w, http.StatusUnauthorized, constants.ErrInvalidSession)
			return
		}
		periode := strings.TrimSpace(r.FormValue("periode"))
		if periode == "" {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrPeriodeRequired)
			return
		}

		file, handler, err := r.FormFile("file")
		if err != nil {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrNoFileProvided)
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, "Failed to read file: "+err.Error())
			return
		}
		sum := sha256.Sum256(data)
		fileHash := hex.EncodeToString(sum[:])

		ctx := r.Context()
		if done, err := alreadyImported(ctx, pool, def.Spec.Name, periode, fileHash); err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed+err.Error())
			return
		} else if done {
			api.LogInfo("%s import skipped, file already applied (periode %s, hash %s)", def.Spec.Name, periode, fileHash[:12])
			api.RespondWithPayload(w, true, "", map[string]interface{}{"already_imported": true})
			return
		}

		allRows, err := parseUploadRows(handler.Filename, data)
		if err != nil {
			api.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		if len(allRows) < 2 {
			api.RespondWithError(w, http.StatusBadRequest, constants.ErrEmptySheet)
			return
		}
		header, dataRows := allRows[0], allRows[1:]

		products, err := fetchProducts(ctx, pool)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed+err.Error())
			return
		}
		existingDefaults, err := fetchDefaultRates(ctx, pool, def, periode)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed+err.Error())
			return
		}
		lockedSet, err := fetchLockedSet(ctx, pool)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrQueryFailed+err.Error())
			return
		}

		batch, validationErrs := rates.ValidateImport(def.Spec, header, dataRows, products, existingDefaults, lockedSet)
		if len(validationErrs) > 0 {
			api.LogInfo("%s import rejected with %d errors (periode %s, by %s)", def.Spec.Name, len(validationErrs), periode, uploadedBy)
			w.Header().Set("Content-Type", constants.ContentTypeJSON)
			w.WriteHeader(http.StatusUnprocessableEntity)
			api.RespondWithPayload(w, false, constants.ErrValidationRejected, map[string]interface{}{
				"errors":       api.CapErrors(validationErrs, config.MaxImportErrorsShown),
				"total_errors": len(validationErrs),
			})
			return
		}

		inserted, err := applyImport(ctx, pool, def, periode, fileHash, handler.Filename, uploadedBy, batch)
		if err != nil {
			api.RespondWithError(w, http.StatusInternalServerError, constants.ErrImportWritePhase+": "+err.Error())
			return
		}

		if batch.DroppedLocked > 0 && notifier != nil {
			notifier.Notify(fmt.Sprintf("%d product rate(s) in the %s upload were skipped because the products are locked by a costing run", batch.DroppedLocked, def.Spec.Name))
		}
		api.LogInfo("%s import completed: %d rows inserted, %d locked rows dropped (periode %s, by %s)", def.Spec.Name, inserted, batch.DroppedLocked, periode, uploadedBy)
		api.RespondWithPayload(w, true, "", map[string]interface{}{
			"inserted":       inserted,
			"dropped_locked": batch.DroppedLocked,
		})
	}
}

// replaceDeleteSQL scopes the replace's delete to one periode while
// keeping locked products' stored rows. The validator drops locked
// products from the batch, so deleting their rows would erase rates
// the lock is meant to protect. Default rows (NULL product) are always
// replaced.
func replaceDeleteSQL(def SheetDef) string {
	return fmt.Sprintf(`DELETE FROM %s
		WHERE periode=$1
		  AND (product_id IS NULL OR product_id NOT IN (SELECT product_id FROM lockedproducts))`, def.Table)
}

// applyImport runs the replace in one transaction: wipe the periode,
// insert the batch, record the bookkeeping row. Commit or nothing.
func applyImport(ctx context.Context, pool *pgxpool.Pool, def SheetDef, periode, fileHash, filename, uploadedBy string, batch *rates.ImportBatch) (int, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("%s%w", constants.ErrTxStartFailed, err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, replaceDeleteSQL(def), periode); err != nil {
		return 0, err
	}

	cols := []string{"rate_id", "periode", "product_id", "group_id", "group_name", "rate_as_group_id", "created_by"}
	for _, f := range def.Spec.Fields {
		cols = append(cols, f.Key)
	}
	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	insertSQL := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`,
		def.Table, strings.Join(cols, ", "), strings.Join(placeholders, ", "))

	inserted := 0
	for start := 0; start < len(batch.Entries); start += config.ImportBatchSize {
		end := start + config.ImportBatchSize
		if end > len(batch.Entries) {
			end = len(batch.Entries)
		}
		pb := &pgx.Batch{}
		for _, e := range batch.Entries[start:end] {
			args := []interface{}{
				"RT-" + uuid.NewString(), periode, nullIfEmpty(e.ProductID),
				e.GroupID, e.GroupName, nullIfEmpty(e.RateAsGroupID), uploadedBy,
			}
			for _, f := range def.Spec.Fields {
				if f.Numeric {
					args = append(args, e.Rates[f.Key])
				} else {
					args = append(args, e.TextRates[f.Key])
				}
			}
			pb.Queue(insertSQL, args...)
		}
		br := tx.SendBatch(ctx, pb)
		for range batch.Entries[start:end] {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return 0, err
			}
		}
		if err := br.Close(); err != nil {
			return 0, err
		}
		inserted += end - start
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO rateimportbatches (batch_id, sheet, periode, file_hash, file_name, row_count, dropped_locked, status, uploaded_by, uploaded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, 'completed', $8, now())`,
		uuid.NewString(), def.Spec.Name, periode, fileHash, filename, inserted, batch.DroppedLocked, uploadedBy); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("%s%w", constants.ErrTxCommitFailed, err)
	}
	return inserted, nil
}
