package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sunshinecowhides/gallery-backend/pkg/db/models"
	"github.com/sunshinecowhides/gallery-backend/pkg/enums"
	pkgerrors "github.com/sunshinecowhides/gallery-backend/pkg/errors"
)

type fakeConfirmer struct {
	failOn    string
	confirmed []string
}

func (f *fakeConfirmer) ConfirmSale(_ context.Context, photoNumber, holderID string) (*models.ReservationClaim, error) {
	if photoNumber == f.failOn {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no active claim for holder")
	}
	f.confirmed = append(f.confirmed, photoNumber)
	return &models.ReservationClaim{PhotoNumber: photoNumber, HolderID: holderID, Status: enums.ClaimStatusPromoted}, nil
}

func TestCheckoutConfirmAllPhotos(t *testing.T) {
	svc := &fakeConfirmer{}
	handler := CheckoutConfirm(svc, testLogger())

	body := strings.NewReader(`{"photo_numbers":["10027","10031"]}`)
	req := withHolder(httptest.NewRequest(http.MethodPost, "/api/v1/checkout", body), "cart-1")
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(svc.confirmed) != 2 {
		t.Fatalf("expected both photos confirmed, got %v", svc.confirmed)
	}
}

func TestCheckoutConfirmStopsAtFirstFailure(t *testing.T) {
	svc := &fakeConfirmer{failOn: "10031"}
	handler := CheckoutConfirm(svc, testLogger())

	body := strings.NewReader(`{"photo_numbers":["10027","10031","10040"]}`)
	req := withHolder(httptest.NewRequest(http.MethodPost, "/api/v1/checkout", body), "cart-1")
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if len(svc.confirmed) != 1 || svc.confirmed[0] != "10027" {
		t.Fatalf("expected only first photo confirmed, got %v", svc.confirmed)
	}

	var envelope struct {
		Error struct {
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestCheckoutConfirmRejectsEmptyList(t *testing.T) {
	handler := CheckoutConfirm(&fakeConfirmer{}, testLogger())

	body := strings.NewReader(`{"photo_numbers":[]}`)
	req := withHolder(httptest.NewRequest(http.MethodPost, "/api/v1/checkout", body), "cart-1")
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
