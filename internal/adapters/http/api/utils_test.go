package api

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestWriteJSON(t *testing.T) {
	Convey("Given a response recorder", t, func() {
		rec := httptest.NewRecorder()

		Convey("When the value encodes", func() {
			writeJSON(rec, http.StatusCreated, map[string]float64{"score": 87.5})

			Convey("Then the status and body should be written", func() {
				So(rec.Code, ShouldEqual, http.StatusCreated)
				So(rec.Header().Get("Content-Type"), ShouldStartWith, "application/json")
				var body map[string]float64
				So(json.Unmarshal(rec.Body.Bytes(), &body), ShouldBeNil)
				So(body["score"], ShouldEqual, 87.5)
			})
		})

		Convey("When the value holds an infinite number", func() {
			writeJSON(rec, http.StatusOK, map[string]float64{"total_price": math.Inf(1)})

			Convey("Then a JSON 500 should be written instead", func() {
				So(rec.Code, ShouldEqual, http.StatusInternalServerError)
				var body errorResponse
				So(json.Unmarshal(rec.Body.Bytes(), &body), ShouldBeNil)
				So(body.Code, ShouldEqual, "internal_error")
				So(body.Message, ShouldEqual, "failed to encode response")
			})
		})
	})
}
