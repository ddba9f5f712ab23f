/*
 * Copyright 2021 National Library of Norway.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *       http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

/*
Package wcprod reads well production records from the monthly UTF-16 XML release in bounded memory.

# The release

The release is one XML document, tens of gigabytes in size, encoded as UTF-16 and usually published inside a zip
archive. Each repeating wcproduction element reports the volume of one product kind for one well in one month.

# Reading records

The [ProductionReader] is used to read records from an uncompressed stream. It is initialized with [NewProductionReader].
The [ProductionFileReader] opens a release archive and is initialized with [NewProductionFileReader].

The reader is a chain of pull based stages, each usable on its own:

	ByteSource -> Transcoder -> Tokenizer -> Assembler

Every call to Next pulls one record through the chain, so at any time only one chunk, one partial code point and
one partial record are held in memory.

# Errors

Problems with single records are reported as [IncompleteRecordError] and reading may continue. How these are
handled is controlled with [WithRecordErrorPolicy]. Read failures, malformed UTF-16 and malformed XML are final and
reported as [IoError], [EncodingError] and [MalformedXMLError].

# Writing records

[ExtractTo] drives a reader into a [Sink]. Sinks for tab separated files and SQLite are found in package sink, and a
disk backed pivot table with one row per well and month in package pivot.
*/
package wcprod
